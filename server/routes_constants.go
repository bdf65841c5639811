package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/"

	// Auth Routes
	RouteAuthGoogle         = "/api/auth/google"
	RouteAuthGoogleCallback = "/api/auth/google/callback"
	RouteAuthCheck          = "/api/auth/check-auth"
	RouteAuthRefreshToken   = "/api/auth/refresh-token"
	RouteAuthLogout         = "/api/auth/logout"

	// Admin Routes
	RouteAdminRelay = "/api/admin/relay"

	// Storage Routes
	RouteStorageSaveLetter   = "/api/storage/save-letter"
	RouteStorageListLetters  = "/api/storage/list-letters"
	RouteStorageGetLetter    = "/api/storage/get-letter/{fileId}"
	RouteStorageUpdateLetter = "/api/storage/update-letter/{fileId}"
	RouteStorageDeleteLetter = "/api/storage/delete-letter/{fileId}"

	// Realtime relay
	RouteRelay = "/ws"
)
