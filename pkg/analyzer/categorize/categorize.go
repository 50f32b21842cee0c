// Package categorize sorts counted entities into report buckets.
package categorize

import (
	"github.com/panbanda/dartrefs/pkg/models"
)

// Bucket names a report group.
type Bucket string

const (
	BucketUnused             Bucket = "unused"
	BucketCommented          Bucket = "commented"
	BucketInternalOnly       Bucket = "internal_only"
	BucketExternalOnly       Bucket = "external_only"
	BucketMixed              Bucket = "mixed"
	BucketEntryPoint         Bucket = "entry_point"
	BucketFrameworkLifecycle Bucket = "framework_lifecycle"
)

// AllBuckets lists the buckets in report order.
var AllBuckets = []Bucket{
	BucketUnused,
	BucketCommented,
	BucketInternalOnly,
	BucketExternalOnly,
	BucketMixed,
	BucketEntryPoint,
	BucketFrameworkLifecycle,
}

// Buckets holds the entities of each group, each ordered by file, line and name.
type Buckets struct {
	Unused             []*models.Entity `json:"unused" toon:"unused"`
	Commented          []*models.Entity `json:"commented" toon:"commented"`
	InternalOnly       []*models.Entity `json:"internal_only" toon:"internal_only"`
	ExternalOnly       []*models.Entity `json:"external_only" toon:"external_only"`
	Mixed              []*models.Entity `json:"mixed" toon:"mixed"`
	EntryPoint         []*models.Entity `json:"entry_point" toon:"entry_point"`
	FrameworkLifecycle []*models.Entity `json:"framework_lifecycle" toon:"framework_lifecycle"`
}

// Get returns the entities of bucket b.
func (b *Buckets) Get(bucket Bucket) []*models.Entity {
	switch bucket {
	case BucketUnused:
		return b.Unused
	case BucketCommented:
		return b.Commented
	case BucketInternalOnly:
		return b.InternalOnly
	case BucketExternalOnly:
		return b.ExternalOnly
	case BucketMixed:
		return b.Mixed
	case BucketEntryPoint:
		return b.EntryPoint
	case BucketFrameworkLifecycle:
		return b.FrameworkLifecycle
	}
	return nil
}

// Summary counts the entities in each bucket.
type Summary struct {
	Total              int `json:"total" toon:"total"`
	Types              int `json:"types" toon:"types"`
	Functions          int `json:"functions" toon:"functions"`
	Unused             int `json:"unused" toon:"unused"`
	Commented          int `json:"commented" toon:"commented"`
	InternalOnly       int `json:"internal_only" toon:"internal_only"`
	ExternalOnly       int `json:"external_only" toon:"external_only"`
	Mixed              int `json:"mixed" toon:"mixed"`
	EntryPoint         int `json:"entry_point" toon:"entry_point"`
	FrameworkLifecycle int `json:"framework_lifecycle" toon:"framework_lifecycle"`
}

// Classify returns the buckets a single entity belongs to.
//
// Commented declarations land only in the commented bucket. Exempt
// declarations always land in their exempt bucket and additionally in the
// usage bucket matching their counts; they are never unused.
func Classify(e *models.Entity) []Bucket {
	if e.CommentedOut {
		return []Bucket{BucketCommented}
	}

	var out []Bucket
	if e.EntryPoint {
		out = append(out, BucketEntryPoint)
	}
	if e.FrameworkLifecycle {
		out = append(out, BucketFrameworkLifecycle)
	}

	external := e.TotalExternal()
	switch {
	case e.Internal > 0 && external > 0:
		out = append(out, BucketMixed)
	case e.Internal > 0:
		out = append(out, BucketInternalOnly)
	case external > 0:
		out = append(out, BucketExternalOnly)
	case !e.Exempt():
		out = append(out, BucketUnused)
	}
	return out
}

// Categorize assigns every entity to its buckets. The input is not modified.
func Categorize(entities []*models.Entity) (*Buckets, Summary) {
	sorted := make([]*models.Entity, len(entities))
	copy(sorted, entities)
	models.SortEntities(sorted)

	b := &Buckets{}
	var s Summary
	for _, e := range sorted {
		s.Total++
		if e.Category.IsType() {
			s.Types++
		} else {
			s.Functions++
		}
		for _, bucket := range Classify(e) {
			b.add(bucket, e)
		}
	}

	s.Unused = len(b.Unused)
	s.Commented = len(b.Commented)
	s.InternalOnly = len(b.InternalOnly)
	s.ExternalOnly = len(b.ExternalOnly)
	s.Mixed = len(b.Mixed)
	s.EntryPoint = len(b.EntryPoint)
	s.FrameworkLifecycle = len(b.FrameworkLifecycle)
	return b, s
}

func (b *Buckets) add(bucket Bucket, e *models.Entity) {
	switch bucket {
	case BucketUnused:
		b.Unused = append(b.Unused, e)
	case BucketCommented:
		b.Commented = append(b.Commented, e)
	case BucketInternalOnly:
		b.InternalOnly = append(b.InternalOnly, e)
	case BucketExternalOnly:
		b.ExternalOnly = append(b.ExternalOnly, e)
	case BucketMixed:
		b.Mixed = append(b.Mixed, e)
	case BucketEntryPoint:
		b.EntryPoint = append(b.EntryPoint, e)
	case BucketFrameworkLifecycle:
		b.FrameworkLifecycle = append(b.FrameworkLifecycle, e)
	}
}
