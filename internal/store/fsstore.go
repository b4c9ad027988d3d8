// Package store persists built document indexes and their source corpora
// as JSON files on disk, with an LRU read cache in front of the index
// files. One document is two files: {docID}_index.json and
// {docID}_corpus.json.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dgallion1/pagetree/internal/corpus"
	"github.com/dgallion1/pagetree/internal/index"
)

const (
	indexSuffix  = "_index.json"
	corpusSuffix = "_corpus.json"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// DocID derives the stable document id from document name, scenario, and
// model id. The same inputs always produce the same id, so re-indexing
// replaces the previous files.
func DocID(docName, scenario, modelID string) string {
	parts := []string{slug(docName), slug(scenario), slug(modelID)}
	return strings.Join(parts, "_")
}

func slug(s string) string {
	s = strings.TrimSuffix(s, filepath.Ext(s))
	s = slugRe.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "x"
	}
	return s
}

// FSStore is a directory of index and corpus files. Writes go through a
// temp file plus rename so readers never see a partial index. Safe for
// concurrent use; the cache serializes internally.
type FSStore struct {
	dir   string
	cache *lru.Cache[string, *index.DocumentIndex]
}

// NewFSStore opens (creating if needed) the store directory. cacheSize
// bounds the number of parsed indexes kept in memory.
func NewFSStore(dir string, cacheSize int) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	if cacheSize <= 0 {
		cacheSize = 64
	}
	cache, err := lru.New[string, *index.DocumentIndex](cacheSize)
	if err != nil {
		return nil, err
	}
	return &FSStore{dir: dir, cache: cache}, nil
}

type storedRecord struct {
	Page    int         `json:"page"`
	Kind    corpus.Kind `json:"kind"`
	Content string      `json:"content"`
	Level   int         `json:"level,omitempty"`
}

type storedCorpus struct {
	DocName string         `json:"doc_name"`
	Records []storedRecord `json:"records"`
}

// SaveDocument writes the index and its corpus atomically.
func (s *FSStore) SaveDocument(idx *index.DocumentIndex, c *corpus.Corpus) error {
	if idx.DocID == "" {
		return fmt.Errorf("index has no doc id")
	}
	if err := s.writeJSON(idx.DocID+indexSuffix, idx); err != nil {
		return err
	}
	sc := storedCorpus{DocName: c.DocName, Records: make([]storedRecord, len(c.Records))}
	for i, r := range c.Records {
		sc.Records[i] = storedRecord{Page: r.Page, Kind: r.Kind, Content: r.Content, Level: r.Level}
	}
	if err := s.writeJSON(idx.DocID+corpusSuffix, &sc); err != nil {
		return err
	}
	s.cache.Add(idx.DocID, idx)
	return nil
}

func (s *FSStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// LoadIndex returns the parsed index for docID, from cache when possible.
func (s *FSStore) LoadIndex(docID string) (*index.DocumentIndex, error) {
	if idx, ok := s.cache.Get(docID); ok {
		return idx, nil
	}
	data, err := os.ReadFile(filepath.Join(s.dir, docID+indexSuffix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("index %s: %w", docID, ErrNotFound)
		}
		return nil, fmt.Errorf("read index %s: %w", docID, err)
	}
	var idx index.DocumentIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse index %s: %w", docID, err)
	}
	s.cache.Add(docID, &idx)
	return &idx, nil
}

// LoadCorpus reads the stored page records for docID.
func (s *FSStore) LoadCorpus(docID string) (*corpus.Corpus, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, docID+corpusSuffix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("corpus %s: %w", docID, ErrNotFound)
		}
		return nil, fmt.Errorf("read corpus %s: %w", docID, err)
	}
	var sc storedCorpus
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse corpus %s: %w", docID, err)
	}
	c := &corpus.Corpus{DocName: sc.DocName, Records: make([]corpus.PageRecord, len(sc.Records))}
	for i, r := range sc.Records {
		c.Records[i] = corpus.PageRecord{Page: r.Page, Kind: r.Kind, Content: r.Content, Level: r.Level}
	}
	return c, nil
}

// Summary is the list view of one stored document.
type Summary struct {
	DocID       string    `json:"doc_id"`
	DocName     string    `json:"doc_name"`
	Scenario    string    `json:"scenario"`
	ModelID     string    `json:"model_id"`
	TotalPages  int       `json:"total_pages"`
	TotalTables int       `json:"total_tables"`
	NodeCount   int       `json:"node_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// List returns summaries of every stored index, sorted by doc id.
func (s *FSStore) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list store: %w", err)
	}
	var out []Summary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), indexSuffix) {
			continue
		}
		docID := strings.TrimSuffix(e.Name(), indexSuffix)
		idx, err := s.LoadIndex(docID)
		if err != nil {
			continue
		}
		out = append(out, Summary{
			DocID:       idx.DocID,
			DocName:     idx.DocName,
			Scenario:    idx.Scenario,
			ModelID:     idx.ModelID,
			TotalPages:  idx.TotalPages,
			TotalTables: idx.TotalTables,
			NodeCount:   len(idx.Nodes),
			CreatedAt:   idx.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out, nil
}

// Delete removes a document's files and evicts it from the cache.
func (s *FSStore) Delete(docID string) error {
	s.cache.Remove(docID)
	idxErr := os.Remove(filepath.Join(s.dir, docID+indexSuffix))
	if os.IsNotExist(idxErr) {
		return fmt.Errorf("index %s: %w", docID, ErrNotFound)
	}
	if err := os.Remove(filepath.Join(s.dir, docID+corpusSuffix)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return idxErr
}
