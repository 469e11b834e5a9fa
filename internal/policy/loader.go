package policy

import (
	"os"

	"gopkg.in/yaml.v3"
)

// PackFile is the on-disk shape of a policy pack.
type PackFile struct {
	Pack     Pack     `yaml:"pack"`
	Policies []Policy `yaml:"policies"`
}

// LoadPackFile reads a YAML pack from disk. Content hashes are not
// computed here; ingestion stamps and hashes accepted records.
func LoadPackFile(path string) (PackFile, error) {
	// #nosec G304 -- path comes from operator-configured pack paths.
	data, err := os.ReadFile(path)
	if err != nil {
		return PackFile{}, err
	}

	var file PackFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return PackFile{}, err
	}
	return file, nil
}

// LoadInto loads a pack file and ingests it into the library.
func LoadInto(l *Library, path string) (IngestReport, error) {
	file, err := LoadPackFile(path)
	if err != nil {
		return IngestReport{}, err
	}
	if err := l.AddPack(file.Pack); err != nil {
		return IngestReport{}, err
	}
	return l.Ingest(file.Pack.ID, file.Policies)
}
