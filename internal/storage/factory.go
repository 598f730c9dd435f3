// Package storage selects and constructs the object storage provider from
// the environment. The default is the local filesystem; Google Drive is
// available for deployments without durable local disk.
package storage

import (
	"context"
	"os"

	"pinforge/internal/adapters/storage/gdrive"
	"pinforge/internal/adapters/storage/localfs"
	"pinforge/internal/pkg/errors"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

func NewProvider() (Provider, error) {
	provider := os.Getenv("STORAGE_PROVIDER")
	if provider == "" {
		provider = "localfs"
	}

	switch provider {
	case "localfs":
		root := os.Getenv("STORAGE_LOCAL_ROOT")
		if root == "" {
			root = "./data/pins"
		}
		return localfs.New(root), nil

	case "gdrive":
		return newGDriveProvider()

	default:
		return nil, errors.Newf(errors.CodeConfiguration, "unknown storage provider: %s", provider)
	}
}

func newGDriveProvider() (Provider, error) {
	ctx := context.Background()

	clientID, err := requireEnv("GDRIVE_CLIENT_ID")
	if err != nil {
		return nil, err
	}
	clientSecret, err := requireEnv("GDRIVE_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}
	refreshToken, err := requireEnv("GDRIVE_REFRESH_TOKEN")
	if err != nil {
		return nil, err
	}
	folderID := os.Getenv("GDRIVE_FOLDER_ID")

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	tok := &oauth2.Token{RefreshToken: refreshToken}
	httpClient := conf.Client(ctx, tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, errors.Wrap(err, "storage.gdrive", "creating drive service")
	}

	return gdrive.NewClient(srv, folderID), nil
}

func requireEnv(k string) (string, error) {
	v := os.Getenv(k)
	if v == "" {
		return "", errors.Newf(errors.CodeConfiguration, "missing required env %s", k)
	}
	return v, nil
}
