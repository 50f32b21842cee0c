package categorize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/dartrefs/pkg/models"
)

func entity(name, file string, line, internal int, external map[string]int) *models.Entity {
	e := models.NewEntity(name, models.CategoryClass, file, models.Location{Line: line})
	e.Internal = internal
	for f, n := range external {
		e.AddExternal(f, n)
	}
	return e
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		build  func() *models.Entity
		expect []Bucket
	}{
		{
			name:   "unused",
			build:  func() *models.Entity { return entity("A", "/a.dart", 1, 0, nil) },
			expect: []Bucket{BucketUnused},
		},
		{
			name:   "internal only",
			build:  func() *models.Entity { return entity("A", "/a.dart", 1, 2, nil) },
			expect: []Bucket{BucketInternalOnly},
		},
		{
			name:   "external only",
			build:  func() *models.Entity { return entity("A", "/a.dart", 1, 0, map[string]int{"/b.dart": 1}) },
			expect: []Bucket{BucketExternalOnly},
		},
		{
			name:   "mixed",
			build:  func() *models.Entity { return entity("A", "/a.dart", 1, 1, map[string]int{"/b.dart": 3}) },
			expect: []Bucket{BucketMixed},
		},
		{
			name: "commented wins over usage",
			build: func() *models.Entity {
				e := entity("A", "/a.dart", 1, 4, map[string]int{"/b.dart": 1})
				e.CommentedOut = true
				e.EntryPoint = true
				return e
			},
			expect: []Bucket{BucketCommented},
		},
		{
			name: "unused entry point is never unused",
			build: func() *models.Entity {
				e := entity("main", "/a.dart", 1, 0, nil)
				e.EntryPoint = true
				return e
			},
			expect: []Bucket{BucketEntryPoint},
		},
		{
			name: "used lifecycle method keeps its usage bucket",
			build: func() *models.Entity {
				e := entity("build", "/a.dart", 1, 1, nil)
				e.FrameworkLifecycle = true
				return e
			},
			expect: []Bucket{BucketFrameworkLifecycle, BucketInternalOnly},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, Classify(tt.build()))
		})
	}
}

func TestCategorize_OrderAndSummary(t *testing.T) {
	fn := models.NewEntity("helper", models.CategoryFunction, "/a.dart", models.Location{Line: 9})
	entities := []*models.Entity{
		entity("Z", "/b.dart", 1, 0, nil),
		entity("Y", "/a.dart", 5, 0, nil),
		entity("X", "/a.dart", 2, 1, map[string]int{"/b.dart": 1}),
		fn,
	}
	before := append([]*models.Entity(nil), entities...)

	buckets, summary := Categorize(entities)

	require.Len(t, buckets.Unused, 3)
	assert.Equal(t, "Y", buckets.Unused[0].Name)
	assert.Equal(t, "helper", buckets.Unused[1].Name)
	assert.Equal(t, "Z", buckets.Unused[2].Name)
	assert.Equal(t, []*models.Entity{entities[2]}, buckets.Mixed)

	assert.Equal(t, Summary{Total: 4, Types: 3, Functions: 1, Unused: 3, Mixed: 1}, summary)
	assert.Equal(t, before, entities)
}

func TestBuckets_Get(t *testing.T) {
	e := entity("A", "/a.dart", 1, 0, nil)
	e.FrameworkLifecycle = true
	buckets, _ := Categorize([]*models.Entity{e})

	for _, b := range AllBuckets {
		if b == BucketFrameworkLifecycle {
			assert.Len(t, buckets.Get(b), 1)
		} else {
			assert.Empty(t, buckets.Get(b), string(b))
		}
	}
}
