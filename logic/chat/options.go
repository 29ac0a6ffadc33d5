package chat

import "lexanalyzer/vars"

// Options controls a single completion.
type Options struct {
	Model        string
	UseFinetuned bool
	Temperature  float32
	MaxTokens    int
}

type Option func(*Options)

// WithModel overrides model selection entirely.
func WithModel(name string) Option {
	return func(o *Options) { o.Model = name }
}

func WithFinetuned(b bool) Option {
	return func(o *Options) { o.UseFinetuned = b }
}

func WithTemperature(t float32) Option {
	return func(o *Options) { o.Temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

// ApplyOptions resolves opts over the defaults.
func ApplyOptions(opts ...Option) Options {
	o := Options{
		UseFinetuned: true,
		Temperature:  vars.DEFAULT_TEMPERATURE,
		MaxTokens:    vars.DEFAULT_MAX_TOKENS,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
