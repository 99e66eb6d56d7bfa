package memory

import (
	"errors"

	"glasses-cloud-be/internal/entity"

	"github.com/patrickmn/go-cache"
)

var ErrAppNotFound = errors.New("app not found")

// AppRepository keeps registered app servers in process memory. Entries
// never expire; registration survives only as long as the process, which is
// why apps re-register on heartbeat.
type AppRepository struct {
	apps *cache.Cache
}

func NewAppRepository() *AppRepository {
	return &AppRepository{apps: cache.New(cache.NoExpiration, 0)}
}

func (r *AppRepository) Save(app *entity.App) error {
	cp := *app
	r.apps.Set(app.PackageName, &cp, cache.NoExpiration)
	return nil
}

func (r *AppRepository) FindByPackage(packageName string) (*entity.App, error) {
	if x, found := r.apps.Get(packageName); found {
		cp := *x.(*entity.App)
		return &cp, nil
	}
	return nil, ErrAppNotFound
}

func (r *AppRepository) All() ([]*entity.App, error) {
	items := r.apps.Items()
	out := make([]*entity.App, 0, len(items))
	for _, item := range items {
		cp := *item.Object.(*entity.App)
		out = append(out, &cp)
	}
	return out, nil
}

func (r *AppRepository) Delete(packageName string) error {
	r.apps.Delete(packageName)
	return nil
}
