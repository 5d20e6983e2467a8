package service

import (
	"errors"
	"sync"
	"testing"

	"exam_paper_backend/internal/model"
	"exam_paper_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumDetectsTampering(t *testing.T) {
	env := newTestEnv(t)
	author := env.seedUser(t, "author", model.Author)
	reviewer := env.seedUser(t, "reviewer", model.Approver)
	paper := env.seedPaper(t, "MATH-101", author, reviewer, []byte("question 1: 2+2=?"))

	ok, err := env.versions.Verify(paper.CurrentVersionID)
	require.NoError(t, err)
	assert.True(t, ok)

	env.tamper(t, paper.CurrentVersionID)

	// a mismatch is reported, not returned as an error
	ok, err = env.versions.Verify(paper.CurrentVersionID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyUnknownVersion(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.versions.Verify(9999)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestVersionNumbersAreGapFree(t *testing.T) {
	env := newTestEnv(t)
	author := env.seedUser(t, "author", model.Author)
	reviewer := env.seedUser(t, "reviewer", model.Approver)
	paper := env.seedPaper(t, "MATH-101", author, reviewer, []byte("v1"))

	for i := 0; i < 4; i++ {
		_, err := env.versions.CreateVersion(env.db, paper.ID, []byte{byte(i)}, author, "edit")
		require.NoError(t, err)
	}

	history, err := env.versions.History(paper.ID)
	require.NoError(t, err)
	require.Len(t, history, 5)
	// newest first, consecutive, no gaps
	for i, v := range history {
		assert.Equal(t, 5-i, v.VersionNumber)
	}
}

func TestConcurrentVersionCreation(t *testing.T) {
	env := newTestEnv(t)
	author := env.seedUser(t, "author", model.Author)
	reviewer := env.seedUser(t, "reviewer", model.Approver)
	paper := env.seedPaper(t, "MATH-101", author, reviewer, []byte("v1"))

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.versions.CreateVersion(env.db, paper.ID, []byte{byte(i)}, author, "concurrent edit")
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		// a loser of the number race surfaces as a conflict, never as a
		// duplicate row
		assert.ErrorIs(t, err, util.ErrConflict)
	}
	require.Greater(t, created, 0)

	history, err := env.versions.History(paper.ID)
	require.NoError(t, err)
	require.Len(t, history, created+1)

	seen := make(map[int]bool)
	for _, v := range history {
		assert.False(t, seen[v.VersionNumber], "duplicate version number %d", v.VersionNumber)
		seen[v.VersionNumber] = true
	}
	for n := 1; n <= created+1; n++ {
		assert.True(t, seen[n], "missing version number %d", n)
	}
}

func TestRestoreCopiesContentVerbatim(t *testing.T) {
	env := newTestEnv(t)
	author := env.seedUser(t, "author", model.Author)
	reviewer := env.seedUser(t, "reviewer", model.Approver)
	paper := env.seedPaper(t, "MATH-101", author, reviewer, []byte("original questions"))

	v1, err := env.versions.Get(paper.ID, paper.CurrentVersionID)
	require.NoError(t, err)

	_, err = env.versions.CreateVersion(env.db, paper.ID, []byte("reworked questions"), author, "rework")
	require.NoError(t, err)

	restored, err := env.versions.Restore(env.db, paper.ID, v1.ID, author)
	require.NoError(t, err)

	assert.Equal(t, 3, restored.VersionNumber)
	assert.Equal(t, v1.Content, restored.Content)
	assert.Equal(t, v1.Checksum, restored.Checksum)
	assert.Equal(t, model.VersionPending, restored.Status)
	assert.Equal(t, "restored from v1", restored.ChangeSummary)

	// the source version is untouched
	again, err := env.versions.Get(paper.ID, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, v1.Checksum, again.Checksum)
	assert.Equal(t, 1, again.VersionNumber)
}

func TestCompareVersions(t *testing.T) {
	env := newTestEnv(t)
	author := env.seedUser(t, "author", model.Author)
	reviewer := env.seedUser(t, "reviewer", model.Approver)
	paper := env.seedPaper(t, "MATH-101", author, reviewer, []byte("short"))

	v2, err := env.versions.CreateVersion(env.db, paper.ID, []byte("a much longer revision"), author, "expanded")
	require.NoError(t, err)

	diff, err := env.versions.Compare(paper.ID, paper.CurrentVersionID, v2.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, diff.FromVersion)
	assert.Equal(t, 2, diff.ToVersion)
	assert.False(t, diff.ContentEqual)

	fields := make(map[string]FieldChange)
	for _, c := range diff.Changes {
		fields[c.Field] = c
	}
	assert.Contains(t, fields, "checksum")
	assert.Contains(t, fields, "content_size")
	assert.Contains(t, fields, "change_summary")

	// comparing a version against itself yields no changes
	same, err := env.versions.Compare(paper.ID, v2.ID, v2.ID)
	require.NoError(t, err)
	assert.True(t, same.ContentEqual)
	assert.Empty(t, same.Changes)
}

func TestCompareRejectsForeignVersion(t *testing.T) {
	env := newTestEnv(t)
	author := env.seedUser(t, "author", model.Author)
	reviewer := env.seedUser(t, "reviewer", model.Approver)
	a := env.seedPaper(t, "MATH-101", author, reviewer, []byte("paper a"))
	b := env.seedPaper(t, "PHYS-201", author, reviewer, []byte("paper b"))

	_, err := env.versions.Compare(a.ID, a.CurrentVersionID, b.CurrentVersionID)
	assert.True(t, errors.Is(err, util.ErrNotFound))
}

func TestSetCurrentRejectsForeignVersion(t *testing.T) {
	env := newTestEnv(t)
	author := env.seedUser(t, "author", model.Author)
	reviewer := env.seedUser(t, "reviewer", model.Approver)
	a := env.seedPaper(t, "MATH-101", author, reviewer, []byte("paper a"))
	b := env.seedPaper(t, "PHYS-201", author, reviewer, []byte("paper b"))

	err := env.versions.SetCurrent(env.db, a.ID, b.CurrentVersionID)
	assert.ErrorIs(t, err, util.ErrNotFound)
}
