package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/wikistat/pkg/wikistat/ingest"
	"github.com/cognicore/wikistat/pkg/wikistat/markup"
	"github.com/cognicore/wikistat/pkg/wikistat/page"
	"github.com/cognicore/wikistat/pkg/wikistat/stoplist"
)

// Stoplist represents the stopword list configuration
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}

// Loader loads the files a run depends on and constructs the parsing
// components.
type Loader struct {
	StoplistPath    string
	SchemaPath      string
	IgnoredSections []string
	TopN            int
}

// Components holds the shared, read-only parsing components.
type Components struct {
	Stoplist  *stoplist.Set
	Cleaner   *markup.Cleaner
	Tokenizer *ingest.Tokenizer
	Assembler *page.Assembler
	// SchemaScript is empty when the store's built-in schema applies.
	SchemaScript string
}

// Load reads all configuration files and returns initialized components
func (l *Loader) Load() (*Components, error) {
	comp := &Components{}

	// Load stoplist
	if l.StoplistPath != "" {
		sl, err := LoadStoplist(l.StoplistPath)
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		comp.Stoplist = stoplist.New(sl.Terms)
	} else {
		comp.Stoplist = stoplist.English()
	}

	// Load schema script (applied by the store on open)
	if l.SchemaPath != "" {
		data, err := os.ReadFile(l.SchemaPath)
		if err != nil {
			return nil, fmt.Errorf("load schema: %w", err)
		}
		comp.SchemaScript = string(data)
	}

	topN := l.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	comp.Cleaner = markup.NewCleaner(l.IgnoredSections)
	comp.Tokenizer = ingest.NewTokenizer(comp.Stoplist)
	comp.Assembler = page.NewAssembler(comp.Cleaner, comp.Tokenizer, topN)

	return comp, nil
}
