package settings

import (
	"heyrag/internal/models"
)

// Registry pairs the fetched model list with the current selection and
// the generation options, keeping options.NumCtx within the selected
// model's window.
type Registry struct {
	store   *Store
	models  []models.ModelInfo
	current string
	options models.GenerationOptions
}

func NewRegistry(store *Store) *Registry {
	return &Registry{
		store:   store,
		options: store.LoadOptions(),
	}
}

// SetModels installs the fetched registry. A persisted selection is
// honored only if it still exists; otherwise the first entry is chosen.
func (r *Registry) SetModels(infos []models.ModelInfo) {
	r.models = infos
	saved, _ := r.store.Get(KeyModel)
	for _, m := range infos {
		if m.Name == saved {
			r.current = saved
			r.clamp()
			return
		}
	}
	if len(infos) > 0 {
		r.current = infos[0].Name
		r.clamp()
	} else {
		r.current = ""
	}
}

func (r *Registry) Models() []models.ModelInfo {
	return r.models
}

func (r *Registry) Current() string {
	return r.current
}

// CurrentInfo returns the selected model's descriptor, if any.
func (r *Registry) CurrentInfo() (models.ModelInfo, bool) {
	for _, m := range r.models {
		if m.Name == r.current {
			return m, true
		}
	}
	return models.ModelInfo{}, false
}

// MaxCtx is the context ceiling used by the settings pane.
func (r *Registry) MaxCtx() int {
	if info, ok := r.CurrentInfo(); ok && info.NumCtx > 0 {
		return info.NumCtx
	}
	return 32768
}

// SelectModel switches models, clamps NumCtx downward to the new window
// and persists both the selection and the (possibly clamped) options.
// Other options are never altered.
func (r *Registry) SelectModel(name string) {
	for _, m := range r.models {
		if m.Name == name {
			r.current = name
			_ = r.store.Set(KeyModel, name)
			r.clamp()
			return
		}
	}
}

func (r *Registry) clamp() {
	info, ok := r.CurrentInfo()
	if !ok || info.NumCtx <= 0 {
		return
	}
	if r.options.NumCtx > info.NumCtx {
		r.options.NumCtx = info.NumCtx
		_ = r.store.SaveOptions(r.options)
	}
}

func (r *Registry) Options() models.GenerationOptions {
	return r.options
}

// SetOptions replaces the options and persists them.
func (r *Registry) SetOptions(opts models.GenerationOptions) {
	r.options = opts
	_ = r.store.SaveOptions(opts)
}
