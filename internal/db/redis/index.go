package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/noa10/mataresit-sub011/internal/db"
)

// CreateIndex creates an FT index from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropIndex removes an FT index by name. Indexed hashes are kept.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// DescribeIndex reads document count and vector dimension from FT.INFO.
// Both the RediSearch layout (flat "dim") and the valkey-search layout
// (nested "index" with "dimensions") are understood.
func (s *Store) DescribeIndex(ctx context.Context, name string) (*db.IndexInfo, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "not found") {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpIndexInfo, Err: err}
	}

	info := &db.IndexInfo{Name: name}
	for i := 0; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		switch key {
		case "num_docs":
			info.NumDocs = msgInt(raw[i+1])
		case "attributes", "fields":
			attrs, err := raw[i+1].ToArray()
			if err != nil {
				continue
			}
			for _, a := range attrs {
				if dim := vectorDim(a); dim > 0 {
					info.VectorDim = dim
				}
			}
		}
	}
	return info, nil
}

// vectorDim returns the dimension of a VECTOR attribute description, 0 otherwise.
func vectorDim(attr rueidis.RedisMessage) int {
	kv, err := attr.ToArray()
	if err != nil {
		return 0
	}
	isVector := false
	for j := 0; j+1 < len(kv); j += 2 {
		k, err := kv[j].ToString()
		if err != nil || !strings.EqualFold(k, "type") {
			continue
		}
		v, _ := kv[j+1].ToString()
		isVector = strings.EqualFold(v, "VECTOR")
	}
	if !isVector {
		return 0
	}
	return findDim(kv)
}

func findDim(kv []rueidis.RedisMessage) int {
	for j := 0; j+1 < len(kv); j += 2 {
		k, err := kv[j].ToString()
		if err != nil {
			continue
		}
		switch strings.ToLower(k) {
		case "dim", "dimensions":
			return msgInt(kv[j+1])
		case "index":
			if nested, err := kv[j+1].ToArray(); err == nil {
				if d := findDim(nested); d > 0 {
					return d
				}
			}
		}
	}
	return 0
}

// msgInt reads an integer reply that may be encoded as a number or a string.
func msgInt(m rueidis.RedisMessage) int {
	if v, err := m.AsInt64(); err == nil {
		return int(v)
	}
	if f, err := m.AsFloat64(); err == nil {
		return int(f)
	}
	return 0
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(idx.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := []string{idx.Name, "ON", db.StorageHash}
	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}
	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}
	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	args := []string{f.Name}
	switch f.Type {
	case db.IndexFieldNumeric:
		args = append(args, "NUMERIC")
	case db.IndexFieldText:
		args = append(args, "TEXT")
		if f.Weight > 0 && f.Weight != 1 {
			args = append(args, "WEIGHT", strconv.FormatFloat(f.Weight, 'g', -1, 64))
		}
		if f.NoStem {
			args = append(args, "NOSTEM")
		}
	case db.IndexFieldTag:
		args = append(args, "TAG")
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}
	case db.IndexFieldVector:
		if f.VectorDim <= 0 {
			return nil, errors.New("vector DIM must be positive")
		}
		return append(args, vectorArgs(f)...), nil
	default:
		return nil, errors.New("unknown field type")
	}
	if f.Sortable {
		args = append(args, "SORTABLE")
	}
	return args, nil
}

func vectorArgs(f *db.IndexField) []string {
	distance := f.VectorDistance
	if distance == "" {
		distance = db.DistanceCosine
	}
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(distance),
	}
	if f.VectorM > 0 {
		attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
	}
	if f.VectorEFConstruct > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFConstruct))
	}
	return append([]string{"VECTOR", db.VectorHNSW, strconv.Itoa(len(attrs))}, attrs...)
}
