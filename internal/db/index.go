package db

import (
	"errors"
	"fmt"
	"strconv"
)

// StorageHash is the only document layout the search index reads.
const StorageHash = "HASH"

// DistanceMetric used by vector similarity queries.
type DistanceMetric string

// DistanceCosine is cosine distance; similarity is 1 - distance.
const DistanceCosine DistanceMetric = "COSINE"

// VectorHNSW is the approximate-neighbour algorithm used for document embeddings.
const VectorHNSW = "HNSW"

// IndexFieldType enumerates supported FT index field types.
type IndexFieldType int

const (
	// IndexFieldNumeric is a numeric field (dates as unix seconds, amounts).
	IndexFieldNumeric IndexFieldType = iota
	// IndexFieldTag is an exact-match tag field.
	IndexFieldTag
	// IndexFieldText is a full-text field.
	IndexFieldText
	// IndexFieldVector is a FLOAT32 vector field.
	IndexFieldVector
)

// IndexField describes a single field in an FT index schema.
type IndexField struct {
	Name string
	Type IndexFieldType

	TagSeparator string
	// Sortable enables SORTBY and cheap GROUPBY on NUMERIC/TAG fields.
	Sortable bool

	// Weight scales a TEXT field's contribution to the BM25 score; 0 means 1.
	Weight float64
	// NoStem keeps tokens verbatim, for proper nouns like merchant names.
	NoStem bool

	VectorDim         int
	VectorDistance    DistanceMetric
	VectorM           int
	VectorEFConstruct int
}

// IndexDefinition is a complete FT index definition used by FT.CREATE.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// VectorField returns the first vector field, or nil.
func (idx *IndexDefinition) VectorField() *IndexField {
	for i := range idx.Fields {
		if idx.Fields[i].Type == IndexFieldVector {
			return &idx.Fields[i]
		}
	}
	return nil
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return errors.New("index name contains invalid characters")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool, len(idx.Fields))
	vectors := 0
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return errors.New("field name is required at index " + strconv.Itoa(i))
		}
		if seen[f.Name] {
			return errors.New("duplicate field name: " + f.Name)
		}
		seen[f.Name] = true

		switch f.Type {
		case IndexFieldVector:
			vectors++
			if f.VectorDim <= 0 {
				return errors.New("vector field requires positive DIM")
			}
		case IndexFieldText:
			if f.Sortable {
				return errors.New("SORTABLE is only supported on NUMERIC and TAG fields: " + f.Name)
			}
			if f.Weight < 0 {
				return fmt.Errorf("text field %s: negative weight %g", f.Name, f.Weight)
			}
		case IndexFieldNumeric, IndexFieldTag:
		}
	}
	if vectors > 1 {
		return errors.New("at most one vector field is supported")
	}
	return nil
}

// IndexInfo is the subset of FT.INFO the service checks at startup.
type IndexInfo struct {
	Name    string `json:"name"`
	NumDocs int    `json:"num_docs"`
	// VectorDim is the dimension of the embedding field, 0 when the index has none.
	VectorDim int `json:"vector_dim"`
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
