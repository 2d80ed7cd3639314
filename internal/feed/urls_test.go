package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visenty/companion/internal/models"
)

func TestStreamURLs(t *testing.T) {
	sess := &models.Session{ServerBaseURL: "http://192.168.1.20:5000", AccessKey: "a+b c"}

	main, err := MainFeedURL(sess)
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.20:5000/video_feed?access_key=a%2Bb+c", main)

	cam, err := CameraStreamURL(sess, 2)
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.20:5000/api/camera/stream/2?access_key=a%2Bb+c", cam)
}

func TestStreamURLs_NoSession(t *testing.T) {
	for _, sess := range []*models.Session{nil, {Legacy: true}, {AccessKey: "key"}} {
		_, err := MainFeedURL(sess)
		assert.ErrorIs(t, err, ErrNoSession)

		_, err = CameraStreamURL(sess, 1)
		assert.ErrorIs(t, err, ErrNoSession)
	}
}
