package training

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	job := Job{KnowledgeBaseID: 1, VersionID: 2}
	for i := 0; i < 12; i++ {
		job.Files = append(job.Files, FileJob{ID: ID(i + 1), Path: fmt.Sprintf("/f%d", i)})
	}

	batches := Split(job, 5)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0].Files, 5)
	assert.Len(t, batches[1].Files, 5)
	assert.Len(t, batches[2].Files, 2)

	seen := map[Label]bool{}
	for k, b := range batches {
		assert.Equal(t, job.KnowledgeBaseID, b.KnowledgeBaseID)
		g := b.Grouping()
		require.NotNil(t, g.JobIndex)
		assert.Equal(t, k+1, *g.JobIndex)
		assert.Equal(t, 3, *g.TotalJobs)
		assert.NotEmpty(t, g.JobID)
		seen[g.JobID] = true
		for _, f := range b.Files {
			assert.Equal(t, g.JobID, f.JobID)
		}
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, ID(11), batches[2].Files[0].ID)

	// The input job is left untouched.
	assert.Empty(t, job.Files[0].JobID)
}

func TestSplit_Edges(t *testing.T) {
	assert.Nil(t, Split(Job{}, 5))

	one := Job{Files: []FileJob{{Path: "/a"}, {Path: "/b"}}}
	batches := Split(one, 0)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Files, 2)
}
