package platform

// Option configures one adapter.
type Option func(*settings)

type settings struct {
	baseURL    string
	graphqlURL string
	token      string
}

// WithBaseURL overrides the adapter base URL.
func WithBaseURL(u string) Option {
	return func(s *settings) {
		if u != "" {
			s.baseURL = u
		}
	}
}

// WithGraphQLURL overrides the GraphQL endpoint of adapters that use one.
func WithGraphQLURL(u string) Option {
	return func(s *settings) {
		if u != "" {
			s.graphqlURL = u
		}
	}
}

// WithGitHubToken enables the contribution calendar query.
func WithGitHubToken(token string) Option {
	return func(s *settings) { s.token = token }
}

func apply(s settings, opts []Option) settings {
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
