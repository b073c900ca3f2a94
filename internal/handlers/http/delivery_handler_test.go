package http

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"streamgate/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeArtifacts drops a playlist and one segment into the session's output
// directory, standing in for the transcoder.
func (f *gatewayFixture) writeArtifacts(t *testing.T, sessionID domain.SessionID) {
	t.Helper()
	session, err := f.manager.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(session.OutputDir, "index.m3u8"),
		[]byte("#EXTM3U\n#EXT-X-VERSION:3\nsegment_000.ts\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(session.OutputDir, "segment_000.ts"),
		[]byte("ts-bytes"), 0o644))
}

func TestPlaylist_ServedWithValidToken(t *testing.T) {
	f := newGatewayFixture(t)
	f.seedCamera("cam-1", "store-1")
	sessionID, token := f.startSession(t, "cam-1", "user-1", "store-1")
	f.writeArtifacts(t, sessionID)

	w := f.do(t, http.MethodGet, "/stream/"+string(sessionID)+"/playlist?token="+token, "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/vnd.apple.mpegurl", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "#EXTM3U")

	// Serving the artifact refreshed activity and left an audit record.
	events := f.sink.Events()
	last := events[len(events)-1]
	assert.Equal(t, domain.AuditArtifactFetched, last.Type)
	assert.Equal(t, "index.m3u8", last.Artifact)
	assert.Equal(t, domain.UserID("user-1"), last.UserID)
}

func TestSegment_ServedWithValidToken(t *testing.T) {
	f := newGatewayFixture(t)
	f.seedCamera("cam-1", "store-1")
	sessionID, token := f.startSession(t, "cam-1", "user-1", "store-1")
	f.writeArtifacts(t, sessionID)

	w := f.do(t, http.MethodGet, "/stream/"+string(sessionID)+"/segment/segment_000.ts?token="+token, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/mp2t", w.Header().Get("Content-Type"))
	assert.Equal(t, "ts-bytes", w.Body.String())
}

func TestSegment_MissingIs404(t *testing.T) {
	f := newGatewayFixture(t)
	f.seedCamera("cam-1", "store-1")
	sessionID, token := f.startSession(t, "cam-1", "user-1", "store-1")
	f.writeArtifacts(t, sessionID)

	w := f.do(t, http.MethodGet, "/stream/"+string(sessionID)+"/segment/segment_003.ts?token="+token, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSegment_MalformedNamesRejected(t *testing.T) {
	f := newGatewayFixture(t)
	f.seedCamera("cam-1", "store-1")
	sessionID, token := f.startSession(t, "cam-1", "user-1", "store-1")
	f.writeArtifacts(t, sessionID)

	for _, name := range []string{
		"evil.ts",
		"segment_0000.ts",
		"segment_000.mp4",
		"..%2F..%2Fetc%2Fpasswd",
		"segment_000.ts%00",
	} {
		w := f.do(t, http.MethodGet, "/stream/"+string(sessionID)+"/segment/"+name+"?token="+token, "", "")
		assert.Equal(t, http.StatusNotFound, w.Code, "name %q must be rejected", name)
	}
}

func TestDelivery_OfflineCameraStopsServing(t *testing.T) {
	f := newGatewayFixture(t)
	f.seedCamera("cam-1", "store-1")
	sessionID, token := f.startSession(t, "cam-1", "user-1", "store-1")
	f.writeArtifacts(t, sessionID)

	w := f.do(t, http.MethodGet, "/stream/"+string(sessionID)+"/playlist?token="+token, "", "")
	require.Equal(t, http.StatusOK, w.Code)

	// The directory marks the camera offline mid-session. Delivery must stop
	// immediately, not wait for the reaper.
	f.directory.Put(&domain.Camera{
		ID:      "cam-1",
		StoreID: "store-1",
		Active:  false,
		Status:  "offline",
	})

	for _, path := range []string{"/playlist", "/segment/segment_000.ts", "/snapshot"} {
		w := f.do(t, http.MethodGet, "/stream/"+string(sessionID)+path+"?token="+token, "", "")
		assert.Equal(t, http.StatusNotFound, w.Code, "artifact %s must not be served for an offline camera", path)
	}
}

func TestDelivery_TokenScopedToCamera(t *testing.T) {
	f := newGatewayFixture(t)
	f.seedCamera("cam-1", "store-1")
	f.seedCamera("cam-2", "store-1")

	session1, _ := f.startSession(t, "cam-1", "user-1", "store-1")
	_, token2 := f.startSession(t, "cam-2", "user-1", "store-1")
	f.writeArtifacts(t, session1)

	// cam-2's token cannot fetch cam-1's artifacts.
	w := f.do(t, http.MethodGet, "/stream/"+string(session1)+"/playlist?token="+token2, "", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "access denied")
}

func TestDelivery_MissingOrGarbageTokenDenied(t *testing.T) {
	f := newGatewayFixture(t)
	f.seedCamera("cam-1", "store-1")
	sessionID, _ := f.startSession(t, "cam-1", "user-1", "store-1")
	f.writeArtifacts(t, sessionID)

	for _, query := range []string{"", "?token=garbage"} {
		w := f.do(t, http.MethodGet, "/stream/"+string(sessionID)+"/playlist"+query, "", "")
		assert.Equal(t, http.StatusForbidden, w.Code, "query %q", query)
	}
}

func TestDelivery_UnknownSessionIs404BeforeTokenCheck(t *testing.T) {
	f := newGatewayFixture(t)

	w := f.do(t, http.MethodGet, "/stream/no-such-session/playlist?token=whatever", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
