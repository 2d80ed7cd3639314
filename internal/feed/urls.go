package feed

import (
	"net/url"
	"strconv"

	"github.com/visenty/companion/internal/models"
)

// MainFeedURL returns the combined live feed of the connected store.
func MainFeedURL(sess *models.Session) (string, error) {
	if sess == nil || sess.ServerBaseURL == "" || sess.AccessKey == "" {
		return "", ErrNoSession
	}
	return sess.ServerBaseURL + "/video_feed?" + accessQuery(sess), nil
}

// CameraStreamURL returns the live stream of a single camera.
func CameraStreamURL(sess *models.Session, cameraID int) (string, error) {
	if sess == nil || sess.ServerBaseURL == "" || sess.AccessKey == "" {
		return "", ErrNoSession
	}
	return sess.ServerBaseURL + "/api/camera/stream/" + strconv.Itoa(cameraID) + "?" + accessQuery(sess), nil
}

func accessQuery(sess *models.Session) string {
	return url.Values{"access_key": {sess.AccessKey}}.Encode()
}
