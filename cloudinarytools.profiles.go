package cloudinarytools

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// EncodingProfile is the explicit configuration input of the encoder: the
// byte-size ceiling and the quality schedule tried when an image exceeds
// it.
type EncodingProfile struct {
	Name         string `yaml:"name"`
	MaxFileSize  int64  `yaml:"maxFileSize"`
	StartQuality int    `yaml:"startQuality"`
	QualityStep  int    `yaml:"qualityStep"`
}

// DefaultEncodingProfile matches the CDN upload ceiling with the standard
// 95-step-5 schedule.
func DefaultEncodingProfile() EncodingProfile {
	return EncodingProfile{
		Name:         "default",
		MaxFileSize:  MaxFileSize,
		StartQuality: defaultStartQuality,
		QualityStep:  defaultQualityStep,
	}
}

// LoadProfiles reads every .yaml file in profilesDir into the pipeline's
// profile set. Files that fail to read or parse are skipped.
func (p *Pipeline) LoadProfiles(profilesDir string) error {
	entries, err := os.ReadDir(profilesDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		filePath := filepath.Join(profilesDir, entry.Name())
		data, err := os.ReadFile(filePath)
		if err != nil {
			continue
		}

		var profile EncodingProfile
		err = yaml.Unmarshal(data, &profile)
		if err != nil {
			continue
		}
		if profile.Name == "" {
			continue
		}

		p.profiles[profile.Name] = profile
	}

	return nil
}
