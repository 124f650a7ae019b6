package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/casecite/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	fail     map[string]bool
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (m *mockChecker) Check(ctx context.Context, source string) (*model.Report, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxSeen.Load()
		if n <= cur || m.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}

	time.Sleep(10 * time.Millisecond)
	if m.fail[source] {
		return nil, errors.New("check failed")
	}
	return &model.Report{Source: source}, nil
}

func TestBatchProcessor_Process(t *testing.T) {
	checker := &mockChecker{fail: map[string]bool{"b.txt": true}}
	p := NewBatchProcessor(checker, 2)

	var mu sync.Mutex
	var done []string
	p.OnDone(func(r *DocumentResult) {
		mu.Lock()
		defer mu.Unlock()
		done = append(done, r.Source)
	})

	sources := []string{"a.txt", "b.txt", "c.txt", "d.txt"}
	results, err := p.Process(context.Background(), sources)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, r := range results {
		assert.Equal(t, sources[i], r.Source, "results keep input order")
	}
	assert.Error(t, results[1].GetError())
	assert.NoError(t, results[0].GetError())
	assert.Equal(t, "c.txt", results[2].Report.Source)

	assert.Len(t, done, 4)
	assert.LessOrEqual(t, checker.maxSeen.Load(), int32(2))
}

func TestBatchProcessor_Empty(t *testing.T) {
	results, err := NewBatchProcessor(&mockChecker{}, 0).Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBatchProcessor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewBatchProcessor(&mockChecker{}, 1).Process(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, context.Canceled)
	for _, r := range results {
		require.NotNil(t, r)
		assert.Error(t, r.GetError())
	}
}

func TestReadSourcesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.txt")
	content := "# briefs\nbrief1.txt\n\nhttps://example.com/opinion.html\nbrief1.txt\n  brief2.txt  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	sources, err := ReadSourcesFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"brief1.txt", "https://example.com/opinion.html", "brief2.txt"}, sources)

	_, err = ReadSourcesFromFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
