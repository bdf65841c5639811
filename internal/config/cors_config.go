package config

import "strings"

type Cors struct{}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

var defaultAllowedOrigins = []string{
	"http://localhost:5173",
}

// GetAllowedOrigins returns ALLOWED_ORIGINS plus FRONTEND_URL.
func (Cors) GetAllowedOrigins() AllowedOrigins {
	origins := GetEnvList("ALLOWED_ORIGINS")
	if len(origins) == 0 {
		origins = defaultAllowedOrigins
	}
	allowed := make(AllowedOrigins, len(origins)+1)
	for _, o := range origins {
		allowed[strings.TrimSuffix(o, "/")] = nullValue{}
	}
	allowed[strings.TrimSuffix(EnvVars{}.GetFrontendURL(), "/")] = nullValue{}
	return allowed
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, PUT, PATCH, DELETE"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type, Authorization"
}
