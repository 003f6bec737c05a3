// Package uploads signs direct browser uploads to Cloudinary.
package uploads

import (
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"

	"github.com/leoportal/leo-portal-api/models"
)

// ErrNotConfigured is returned when Cloudinary credentials are missing
var ErrNotConfigured = errors.New("uploads are not configured")

// Signer produces upload parameters the browser posts to Cloudinary
type Signer struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string

	now func() time.Time
}

// NewSigner returns a Signer for the given account
func NewSigner(cloudName, apiKey, apiSecret, uploadPreset string) *Signer {
	return &Signer{CloudName: cloudName, APIKey: apiKey, APISecret: apiSecret, UploadPreset: uploadPreset, now: time.Now}
}

// Sign returns a signature for an upload into folder
func (s *Signer) Sign(folder string) (models.UploadSignature, error) {
	if s == nil || s.APISecret == "" || s.APIKey == "" || s.CloudName == "" {
		return models.UploadSignature{}, ErrNotConfigured
	}
	timestamp := strconv.FormatInt(s.now().Unix(), 10)

	params := url.Values{}
	params.Set("timestamp", timestamp)
	params.Set("folder", folder)
	if s.UploadPreset != "" {
		params.Set("upload_preset", s.UploadPreset)
	}
	signature, err := api.SignParameters(params, s.APISecret)
	if err != nil {
		return models.UploadSignature{}, err
	}

	return models.UploadSignature{
		Timestamp:    timestamp,
		Signature:    signature,
		APIKey:       s.APIKey,
		CloudName:    s.CloudName,
		UploadPreset: s.UploadPreset,
		Folder:       folder,
	}, nil
}
