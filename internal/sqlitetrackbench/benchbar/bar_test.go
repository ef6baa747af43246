package benchbar

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBar(t *testing.T) {
	out := &bytes.Buffer{}
	bar := NewBar(out, "Inserting", 100)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bar.Inc()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, bar.Done())
	bar.Finish()
	assert.Contains(t, out.String(), "Inserting")
}
