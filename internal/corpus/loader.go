package corpus

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/tokenizer"
)

// Loader yields the documents to index, in corpus order.
type Loader interface {
	Load(ctx context.Context) ([]Document, error)
}

type moviesFile struct {
	Movies []Document `json:"movies"`
}

// LoadMovies reads a JSON file shaped {"movies": [...]}.
func LoadMovies(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening movies file: %w", err)
	}
	defer f.Close()
	var file moviesFile
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&file); err != nil {
		return nil, fmt.Errorf("decoding movies file %s: %w", path, err)
	}
	if file.Movies == nil {
		file.Movies = []Document{}
	}
	return file.Movies, nil
}

// LoadStopwords reads one stop word per line. Blank lines are skipped and
// words are lower-cased.
func LoadStopwords(path string) (tokenizer.Stopwords, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stopwords file: %w", err)
	}
	defer f.Close()
	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		words = append(words, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stopwords file %s: %w", path, err)
	}
	return tokenizer.NewStopwords(words...), nil
}

// FileLoader loads documents from a movies JSON file.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadMovies(l.Path)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) ([]Document, error)

func (f LoaderFunc) Load(ctx context.Context) ([]Document, error) {
	return f(ctx)
}
