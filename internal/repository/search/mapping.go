package search

import (
	"strconv"
	"strings"
	"time"

	"github.com/noa10/mataresit-sub011/internal/db"
	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/repository/schema"
)

// toCandidates maps hits to candidates, letting score fill the primitive-specific signal.
func toCandidates(sr *db.SearchResult, score func(c *candidate.Candidate, raw float64)) []candidate.Candidate {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	out := make([]candidate.Candidate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		c := parseEntry(e)
		score(&c, e.Score)
		c.Normalize()
		out = append(out, c)
	}
	return out
}

func parseEntry(e db.SearchEntry) candidate.Candidate {
	f := e.Fields
	c := candidate.Candidate{
		SourceType:  f[schema.FieldSourceType],
		SourceID:    f[schema.FieldSourceID],
		ContentType: f[schema.FieldContentType],
		Title:       f[schema.FieldTitle],
		Description: f[schema.FieldDescription],
		AccessLevel: f[schema.FieldAccessLevel],
		Metadata:    make(map[string]any, 6),
	}
	if c.SourceID == "" {
		c.SourceID = strings.TrimPrefix(e.Key, domain.DocumentKeyPrefix())
	}
	if c.AccessLevel == "" {
		c.AccessLevel = candidate.AccessUser
	}
	if ts, ok := unix(f[schema.FieldCreatedAt]); ok {
		c.CreatedAt = ts
	}
	if ts, ok := unix(f[schema.FieldEntityDate]); ok {
		c.Metadata[candidate.MetaEntityDate] = ts.Format(time.DateOnly)
	}
	if v, err := strconv.ParseFloat(f[schema.FieldTotal], 64); err == nil {
		c.Metadata[candidate.MetaTotal] = v
	}
	for key, meta := range map[string]string{
		schema.FieldMerchant: candidate.MetaMerchant,
		schema.FieldCategory: candidate.MetaCategory,
		schema.FieldStatus:   candidate.MetaStatus,
		schema.FieldCurrency: candidate.MetaCurrency,
	} {
		if v := f[key]; v != "" {
			c.Metadata[meta] = v
		}
	}
	return c
}

func unix(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(int64(v), 0).UTC(), true
}
