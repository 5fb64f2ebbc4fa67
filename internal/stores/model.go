package stores

// Store is a merchant storefront registered with the platform.
type Store struct {
	ID              int64
	AccountID       int64
	Name            string
	Domain          string
	AccessToken     string
	Currency        string
	TimezoneOffset  int // minutes east of UTC
	AdAccountID     string
	AdAccountActive bool
	Active          bool
}
