package publish

import "context"

// Poster is the capability one platform exposes: upload media, then post
// text optionally referencing the uploaded handle.
type Poster interface {
	Name() string
	// Post creates a post and returns the platform-specific post id.
	// mediaHandle may be empty for text-only posts.
	Post(ctx context.Context, text, mediaHandle string) (string, error)
	// UploadMedia uploads raw media bytes and returns a platform-specific
	// handle for use in a subsequent Post.
	UploadMedia(ctx context.Context, media []byte) (string, error)
}

// ReplyPoster is the optional threading capability. The publisher only
// threads context replies on platforms that implement it.
type ReplyPoster interface {
	Poster
	// Reply creates a post as a reply to parentID.
	Reply(ctx context.Context, text, parentID string) (string, error)
}
