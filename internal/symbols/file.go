package symbols

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type symbolsFile struct {
	Symbols map[string]string `yaml:"symbols"`
}

// LoadFile reads extra ticker to provider id mappings:
//
//	symbols:
//	  PEPE: pepe
//	  WIF: dogwifcoin
//
// An empty path or a missing file yields an empty table.
func LoadFile(path string) (map[string]string, error) {
	table := map[string]string{}
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return table, nil
		}
		return nil, errors.Wrap(err, "read symbols file")
	}

	var f symbolsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse symbols file")
	}
	for ticker, id := range f.Symbols {
		if id == "" {
			continue
		}
		table[Normalize(ticker)] = id
	}
	return table, nil
}
