package contract

import "glasses-cloud-be/internal/entity"

// IAppRepository stores registered app servers. Package name is the key.
type IAppRepository interface {
	Save(app *entity.App) error
	FindByPackage(packageName string) (*entity.App, error)
	All() ([]*entity.App, error)
	Delete(packageName string) error
}
