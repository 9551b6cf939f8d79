package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	s := defaultSettings()
	for _, o := range []Option{ConnectionTimeout(3 * time.Second), MaxConnections(4)} {
		o.apply(&s)
	}
	require.Equal(t, 3*time.Second, s.connectTimeout)
	require.Equal(t, int32(4), s.maxConns)
}

func TestDatabaseFromURL(t *testing.T) {
	require.Equal(t, "chatdb", databaseFromURL("mongodb://localhost:27017/chatdb"))
	require.Equal(t, "chatdb", databaseFromURL("mongodb+srv://u:p@cluster.example.net/chatdb?retryWrites=true"))
	require.Equal(t, defaultDatabaseName, databaseFromURL("mongodb://localhost:27017"))
	require.Equal(t, defaultDatabaseName, databaseFromURL("mongodb://localhost:27017/"))
}
