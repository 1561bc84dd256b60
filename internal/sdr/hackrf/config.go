package hackrf

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	MinNumSamples = 8192
	MaxLNAGain    = 40
	MaxVGAGain    = 62
	LNAGainStep   = 8
	VGAGainStep   = 2
)

// Config is a struct for configuring the `hackrf_transfer` capture tool.
// See `man hackrf_transfer` for more information.
type Config struct {
	// SampleRate is the capture sample rate in Hz (-s).
	SampleRate int64 `yaml:"sampleRate" json:"sampleRate"`

	// NumSamples is the number of samples to capture per invocation (-n).
	NumSamples int64 `yaml:"numSamples" json:"numSamples"`

	// LNAGain is the IF gain, 0-40dB in 8dB steps (-l).
	LNAGain *int `yaml:"lnaGain" json:"lnaGain"`

	// VGAGain is the baseband gain, 0-62dB in 2dB steps (-g).
	VGAGain *int `yaml:"vgaGain" json:"vgaGain"`

	// EnableAmp enables the RX RF amplifier (-a 1).
	EnableAmp bool `yaml:"enableAmp" json:"enableAmp"`

	// SerialNumber selects a specific HackRF when more than one is attached (-d).
	SerialNumber string `yaml:"serialNumber" json:"serialNumber"`
}

func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return errors.New("hackrf.Config: sample rate must be positive")
	}

	if c.NumSamples > 0 && c.NumSamples < MinNumSamples {
		return fmt.Errorf("hackrf.Config: number of samples must be at least %d: %d given", MinNumSamples, c.NumSamples)
	}

	if c.LNAGain != nil {
		if *c.LNAGain < 0 || *c.LNAGain > MaxLNAGain {
			return fmt.Errorf("hackrf.Config: LNA gain must be between 0 and 40 dB: %d given", *c.LNAGain)
		}
		if *c.LNAGain%LNAGainStep != 0 {
			return errors.New("hackrf.Config: LNA gain must be a multiple of 8 dB")
		}
	}

	if c.VGAGain != nil {
		if *c.VGAGain < 0 || *c.VGAGain > MaxVGAGain {
			return fmt.Errorf("hackrf.Config: VGA gain must be between 0 and 62 dB: %d given", *c.VGAGain)
		}
		if *c.VGAGain%VGAGainStep != 0 {
			return errors.New("hackrf.Config: VGA gain must be a multiple of 2 dB")
		}
	}

	return nil
}

// Args builds command line arguments for `hackrf_transfer` capturing to
// outFile at the given center frequency.
//
// Example invocation:
//
//	hackrf_transfer -r samples.bin -f 850000000 -s 10000000 -n 1048576 -l 40 -g 40 -a 1
func (c *Config) Args(outFile string, centerFreq int64) ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	numSamples := c.NumSamples
	if numSamples == 0 {
		numSamples = 1 << 20
	}

	args := []string{
		"-r", outFile,
		"-f", strconv.FormatInt(centerFreq, 10),
		"-s", strconv.FormatInt(c.SampleRate, 10),
		"-n", strconv.FormatInt(numSamples, 10),
	}

	if c.LNAGain != nil {
		args = append(args, "-l", strconv.Itoa(*c.LNAGain))
	}
	if c.VGAGain != nil {
		args = append(args, "-g", strconv.Itoa(*c.VGAGain))
	}
	if c.EnableAmp {
		args = append(args, "-a", "1")
	}
	if c.SerialNumber != "" {
		args = append(args, "-d", c.SerialNumber)
	}

	return args, nil
}
