package scene

import (
	"context"
	"image"

	"pinforge/internal/models"
	"pinforge/internal/pkg/errors"
)

// ImageSource fetches and decodes an element's image bytes.
type ImageSource interface {
	Load(ctx context.Context, url string) (image.Image, error)
}

// LoadState is the async fetch state of one image element.
type LoadState string

const (
	LoadPlaceholder LoadState = "placeholder"
	LoadLoading     LoadState = "loading"
	LoadResolved    LoadState = "resolved"
	LoadFailed      LoadState = "failed"
)

type imageLoad struct {
	state  LoadState
	url    string
	img    image.Image
	err    error
	cancel context.CancelFunc
}

// LoadImage starts an async fetch of an image element's source. A newer call
// for the same element supersedes an in-flight one; a fetch finishing after
// its element was removed, replaced or the scene destroyed discards its
// result instead of resurrecting stale state.
func (s *Scene) LoadImage(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return errDestroyed("scene.load_image")
	}
	el, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return errors.NotFound("element", id)
	}
	if el.Kind != models.KindImage {
		s.mu.Unlock()
		return errors.Validationf("element %s is %q, not an image", id, el.Kind)
	}
	if s.images == nil {
		s.mu.Unlock()
		return errors.Configuration("scene has no image source")
	}
	url := el.Image.URL
	if prev, ok := s.loads[id]; ok && prev.cancel != nil {
		prev.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	load := &imageLoad{state: LoadLoading, url: url, cancel: cancel}
	s.loads[id] = load
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeImageLoading, ID: id})
	s.repaint.request()

	go s.finishLoad(loadCtx, id, load)
	return nil
}

func (s *Scene) finishLoad(ctx context.Context, id string, load *imageLoad) {
	img, err := s.images.Load(ctx, load.url)

	s.mu.Lock()
	if s.destroyed || s.loads[id] != load {
		s.mu.Unlock()
		return
	}
	if _, alive := s.byID[id]; !alive {
		delete(s.loads, id)
		s.mu.Unlock()
		return
	}
	kind := ChangeImageResolved
	if err != nil {
		load.state = LoadFailed
		load.err = err
		kind = ChangeImageFailed
	} else {
		load.state = LoadResolved
		load.img = img
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("image load failed", "element_id", id, "url", load.url, "error", err.Error())
	}
	s.notify(Change{Kind: kind, ID: id})
	s.repaint.request()
}

// ImageState reports the load state for an element; before any load starts
// every image element is a placeholder.
func (s *Scene) ImageState(id string) LoadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if load, ok := s.loads[id]; ok {
		return load.state
	}
	return LoadPlaceholder
}

// LoadedImage returns the decoded pixels once a load resolved.
func (s *Scene) LoadedImage(id string) (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	load, ok := s.loads[id]
	if !ok || load.state != LoadResolved {
		return nil, false
	}
	return load.img, true
}
