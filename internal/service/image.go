package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dolcelab/pasticceria-backend/config"
)

// categoryEntry pairs a lower-case keyword with a curated image URL
type categoryEntry struct {
	Key string
	URL string
}

// defaultImageURL is returned when no category keyword matches
const defaultImageURL = "https://images.pexels.com/photos/205961/pexels-photo-205961.jpeg?auto=compress&cs=tinysrgb&w=800"

// categoryImages is the curated keyword table. Matching is
// substring-based and order-dependent: a query containing several
// keywords resolves to whichever key appears EARLIEST here, not the
// longest match. Reordering the table changes outcomes, so the order is
// part of the contract.
var categoryImages = []categoryEntry{
	// Creme
	{"crema pasticcera", "https://images.pexels.com/photos/4110256/pexels-photo-4110256.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"crema inglese", "https://images.pexels.com/photos/7474083/pexels-photo-7474083.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"crema chantilly", "https://images.pexels.com/photos/4099238/pexels-photo-4099238.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"panna", "https://images.pexels.com/photos/4099238/pexels-photo-4099238.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"crema", "https://images.pexels.com/photos/4110256/pexels-photo-4110256.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"bavarese", "https://images.pexels.com/photos/3776942/pexels-photo-3776942.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"mousse", "https://images.pexels.com/photos/3776942/pexels-photo-3776942.jpeg?auto=compress&cs=tinysrgb&w=800"},

	// Cioccolato
	{"cioccolato", "https://images.pexels.com/photos/4110351/pexels-photo-4110351.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"chocolate", "https://images.pexels.com/photos/4110351/pexels-photo-4110351.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"ganache", "https://images.pexels.com/photos/4110351/pexels-photo-4110351.jpeg?auto=compress&cs=tinysrgb&w=800"},

	// Torte
	{"torta", "https://images.pexels.com/photos/140831/pexels-photo-140831.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"cake", "https://images.pexels.com/photos/140831/pexels-photo-140831.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"pan di spagna", "https://images.pexels.com/photos/1854652/pexels-photo-1854652.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"sponge", "https://images.pexels.com/photos/1854652/pexels-photo-1854652.jpeg?auto=compress&cs=tinysrgb&w=800"},

	// Crostate
	{"crostata", "https://images.pexels.com/photos/6607/food-dessert-cake-sweet.jpg?auto=compress&cs=tinysrgb&w=800"},
	{"tart", "https://images.pexels.com/photos/6607/food-dessert-cake-sweet.jpg?auto=compress&cs=tinysrgb&w=800"},

	// Biscotti
	{"biscotti", "https://images.pexels.com/photos/230325/pexels-photo-230325.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"cookie", "https://images.pexels.com/photos/230325/pexels-photo-230325.jpeg?auto=compress&cs=tinysrgb&w=800"},

	// Muffin e cupcake
	{"muffin", "https://images.pexels.com/photos/2067396/pexels-photo-2067396.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"cupcake", "https://images.pexels.com/photos/913136/pexels-photo-913136.jpeg?auto=compress&cs=tinysrgb&w=800"},

	// Impasti e paste base
	{"pasta frolla", "https://images.pexels.com/photos/4033324/pexels-photo-4033324.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"pasta sfoglia", "https://images.pexels.com/photos/4033324/pexels-photo-4033324.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"frolla", "https://images.pexels.com/photos/4033324/pexels-photo-4033324.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"sfoglia", "https://images.pexels.com/photos/4033324/pexels-photo-4033324.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"impasto", "https://images.pexels.com/photos/4033324/pexels-photo-4033324.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"pasta", "https://images.pexels.com/photos/4033324/pexels-photo-4033324.jpeg?auto=compress&cs=tinysrgb&w=800"},

	// Pane e lievitati
	{"pane", "https://images.pexels.com/photos/209887/pexels-photo-209887.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"brioche", "https://images.pexels.com/photos/2144112/pexels-photo-2144112.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"cornetto", "https://images.pexels.com/photos/2144112/pexels-photo-2144112.jpeg?auto=compress&cs=tinysrgb&w=800"},
	{"croissant", "https://images.pexels.com/photos/2144112/pexels-photo-2144112.jpeg?auto=compress&cs=tinysrgb&w=800"},
}

// resolveFromTable runs the ordered substring scan over a given table.
// Split out so tests can prove the order sensitivity with their own table.
func resolveFromTable(table []categoryEntry, query string) string {
	queryLower := strings.ToLower(query)
	for _, entry := range table {
		if strings.Contains(queryLower, entry.Key) {
			return entry.URL
		}
	}
	return defaultImageURL
}

// ImageService resolves recipe images and stores uploaded ones
type ImageService struct {
	unsplashKey string
	unsplashURL string
	s3Config    *config.S3Config
	client      *http.Client
}

// NewImageService creates a new ImageService instance. The S3 config is
// optional; without it image upload is disabled.
func NewImageService(cfg *config.Config, s3Config *config.S3Config) *ImageService {
	return &ImageService{
		unsplashKey: cfg.UnsplashAccessKey,
		unsplashURL: cfg.UnsplashAPIURL,
		s3Config:    s3Config,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// ResolveImage maps a free-text query to a curated image URL. Total: a
// default always exists, so every query resolves to some URL.
func (s *ImageService) ResolveImage(query string) string {
	return resolveFromTable(categoryImages, query)
}

// SearchImage implements the lookup interface used by the recipe
// workflows. The active path always uses the curated category table;
// the Unsplash client below can be reactivated in its place.
func (s *ImageService) SearchImage(ctx context.Context, query string) (string, error) {
	return s.ResolveImage(query), nil
}

// SearchUnsplash queries the Unsplash photo search API. Kept callable but
// outside the active lookup path; category images proved more relevant.
func (s *ImageService) SearchUnsplash(ctx context.Context, query string) (string, error) {
	if s.unsplashKey == "" {
		return "", fmt.Errorf("UNSPLASH_ACCESS_KEY not configured")
	}

	reqURL := fmt.Sprintf("%s?query=%s&per_page=1&orientation=landscape", s.unsplashURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+s.unsplashKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("[ImageService] Unsplash request failed with status %d: %s", resp.StatusCode, string(body))
		return "", fmt.Errorf("Unsplash request failed with status %d", resp.StatusCode)
	}

	var result struct {
		Results []struct {
			URLs struct {
				Regular string `json:"regular"`
			} `json:"urls"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Results) == 0 {
		return "", fmt.Errorf("no results for query %q", query)
	}

	return result.Results[0].URLs.Regular, nil
}

// UploadImage stores a user-provided recipe image in S3 and returns its
// public URL
func (s *ImageService) UploadImage(ctx context.Context, data []byte, fileName, contentType string) (string, error) {
	if s.s3Config == nil {
		return "", fmt.Errorf("image storage not configured")
	}

	if contentType == "" {
		contentType = "image/jpeg"
	}

	ext := path.Ext(fileName)
	if ext == "" {
		ext = ".jpg"
	}
	key := fmt.Sprintf("recipe-images/%s%s", uuid.New().String(), ext)

	_, err := s.s3Config.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	publicURL := fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.s3Config.BucketName, key)
	log.Printf("[ImageService] Successfully uploaded image to S3: %s", publicURL)

	return publicURL, nil
}
