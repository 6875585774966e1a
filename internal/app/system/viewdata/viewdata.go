// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"net/http"
	"sync"

	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
)

// DefaultSiteName is shown in the layout until Init sets another.
const DefaultSiteName = "COVID-19 Dashboard"

// BaseVM carries the fields every page template reads. Embed it in
// feature view models:
//
//	type pageVM struct {
//	    viewdata.BaseVM
//	    Cards []presenter.CardVM
//	}
type BaseVM struct {
	SiteName string

	Title       string
	BackURL     string
	CurrentPath string

	// CSRFToken goes in a hidden csrf_token field on every form.
	CSRFToken string
}

var (
	mu       sync.RWMutex
	siteName = DefaultSiteName
)

// Init sets the site name. Called once from bootstrap.
func Init(name string) {
	if name == "" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	siteName = name
}

func currentSiteName() string {
	mu.RLock()
	defer mu.RUnlock()
	return siteName
}

// NewBaseVM creates a BaseVM with a title and a back link that falls back
// to backDefault.
func NewBaseVM(r *http.Request, title, backDefault string) BaseVM {
	vm := New(r)
	vm.Title = title
	vm.BackURL = httpnav.ResolveBackURL(r, backDefault)
	return vm
}

// New creates a BaseVM without a title.
func New(r *http.Request) BaseVM {
	return BaseVM{
		SiteName:    currentSiteName(),
		CurrentPath: httpnav.CurrentPath(r),
		CSRFToken:   csrf.Token(r),
	}
}
