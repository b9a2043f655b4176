package traffic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vatscope/traffic-server/pkg/logger"
)

func TestNewStatusClientValidatesURLs(t *testing.T) {
	log := logger.NewNop()

	_, err := NewStatusClient(nil, time.Second, log)
	assert.Error(t, err)

	_, err = NewStatusClient([]string{"http://example.com/data.txt", ""}, time.Second, log)
	assert.Error(t, err)

	c, err := NewStatusClient([]string{"http://example.com/data.txt"}, time.Second, log)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestGetTrafficData(t *testing.T) {
	const body = "!GENERAL\nVERSION = 8\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c, err := NewStatusClient([]string{srv.URL}, 5*time.Second, logger.NewNop())
	require.NoError(t, err)

	data, err := c.GetTrafficData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, body, data.Raw)
	assert.Equal(t, srv.URL, data.Source)
	assert.False(t, data.DateReceived.IsZero())
	assert.Greater(t, data.FetchTime, time.Duration(0))
}

func TestGetTrafficDataRotatesMirrors(t *testing.T) {
	var hitsA, hitsB int
	srvA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitsA++
		w.Write([]byte("a"))
	}))
	defer srvA.Close()
	srvB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitsB++
		w.Write([]byte("b"))
	}))
	defer srvB.Close()

	c, err := NewStatusClient([]string{srvA.URL, srvB.URL}, 5*time.Second, logger.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := c.GetTrafficData(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, hitsA)
	assert.Equal(t, 2, hitsB)
}

func TestGetTrafficDataRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewStatusClient([]string{srv.URL}, 5*time.Second, logger.NewNop())
	require.NoError(t, err)

	_, err = c.GetTrafficData(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code")
}
