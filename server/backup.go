package server

import (
	"path"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/teniola/calldex/server/gstorage"
	"github.com/teniola/calldex/shared"
	"github.com/teniola/calldex/utils"
)

var (
	gStorageClient *gstorage.GStorage
	storageConfig  shared.StorageConfig
)

func initGStorageClient(serverConfig *shared.ServerConfig) error {
	var err error

	gStorageClient, err = gstorage.NewGStorage(serverConfig.Google.ApplicationCredentials)
	if err != nil {
		return errors.Wrap(err, "unable to create storage client for sqlite backups")
	}

	storageConfig = serverConfig.Google.Storage
	return nil
}

func backupSqliteDb(dbFilePath string) {
	if !utils.FileExist(dbFilePath) {
		logg.Warnf("no sqlite db file at %v, skipping backup", dbFilePath)
		return
	}

	err := gStorageClient.UploadFile(storageConfig.Bucket, storageConfig.Prefix, dbFilePath)
	if err != nil {
		logg.Errorf("sqlite backup failed: %v", err)
		return
	}

	logg.Infof("sqlite db backed up to gs://%v/%v", storageConfig.Bucket, storageConfig.Prefix)
}

// restoreSqliteDbIfMissing pulls the last backup into dbFilePath when
// the server boots on a host with no local db e.g. after a re-deploy.
func restoreSqliteDbIfMissing(dbFilePath string) {
	if utils.FileExist(dbFilePath) {
		return
	}

	object := path.Join(storageConfig.Prefix, filepath.Base(dbFilePath))
	err := gStorageClient.DownloadFile(storageConfig.Bucket, object, dbFilePath)
	if err == gstorage.ErrObjectNotExist {
		logg.Infof("no sqlite backup found in gs://%v, starting fresh", storageConfig.Bucket)
		return
	}

	if err != nil {
		logg.Errorf("unable to restore sqlite db: %v", err)
		return
	}

	logg.Infof("restored sqlite db from gs://%v/%v", storageConfig.Bucket, object)
}
