package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	"ecommerce-api/internal/models"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Image folders
const (
	ProductImageFolder = "Ecommerce_Product_Images"
	AvatarFolder       = "Ecommerce_Avatars"
)

// CloudinaryStore uploads and destroys images in a Cloudinary account.
type CloudinaryStore struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryStore creates an image store from account credentials
func NewCloudinaryStore(cloudName, apiKey, apiSecret string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld}, nil
}

// Upload stores the image in folder, scaled to width pixels
func (c *CloudinaryStore) Upload(ctx context.Context, file io.Reader, folder string, width int) (models.Image, error) {
	resp, err := c.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:         folder,
		Transformation: fmt.Sprintf("c_scale,w_%d", width),
	})
	if err != nil {
		return models.Image{}, fmt.Errorf("upload image: %w", err)
	}
	if resp.Error.Message != "" {
		return models.Image{}, errors.New("upload image: " + resp.Error.Message)
	}
	return models.Image{PublicID: resp.PublicID, URL: resp.SecureURL}, nil
}

// Destroy removes an image by public id
func (c *CloudinaryStore) Destroy(ctx context.Context, publicID string) error {
	resp, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("destroy image: %w", err)
	}
	if resp.Error.Message != "" {
		return errors.New("destroy image: " + resp.Error.Message)
	}
	return nil
}
