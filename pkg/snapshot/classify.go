package snapshot

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/spaolacci/murmur3"
)

// AssetID derives the stable identifier of an asset from its URL, so a
// later timing observation for the same URL lands on the same asset.
func AssetID(rawURL string) string {
	return fmt.Sprintf("asset-%016x", murmur3.Sum64([]byte(rawURL)))
}

var extTypes = map[string]AssetType{
	".js": TypeScript, ".mjs": TypeScript, ".cjs": TypeScript, ".jsx": TypeScript,
	".css": TypeStylesheet,
	".png": TypeImage, ".jpg": TypeImage, ".jpeg": TypeImage, ".gif": TypeImage,
	".svg": TypeImage, ".webp": TypeImage, ".ico": TypeImage, ".avif": TypeImage, ".bmp": TypeImage,
	".woff": TypeFont, ".woff2": TypeFont, ".ttf": TypeFont, ".otf": TypeFont, ".eot": TypeFont,
	".mp4": TypeMedia, ".webm": TypeMedia, ".mp3": TypeMedia, ".ogg": TypeMedia,
	".wav": TypeMedia, ".m3u8": TypeMedia, ".mov": TypeMedia,
	".html": TypeDocument, ".htm": TypeDocument, ".php": TypeDocument, ".aspx": TypeDocument,
	".json": TypeData, ".xml": TypeData, ".csv": TypeData, ".txt": TypeData,
	".webmanifest": TypeData, ".map": TypeData, ".wasm": TypeData,
}

// Classify infers the asset type from the URL path.
func Classify(u *url.URL) AssetType {
	p := strings.ToLower(u.Path)
	if t, ok := extTypes[path.Ext(p)]; ok {
		return t
	}
	if strings.Contains(p, "/api/") || strings.HasPrefix(p, "/api") ||
		strings.Contains(p, "/graphql") || u.Scheme == "ws" || u.Scheme == "wss" {
		return TypeAPI
	}
	if p == "" || p == "/" || strings.HasSuffix(p, "/") {
		return TypeDocument
	}
	return TypeUnknown
}

// TypeForResource maps a browser resource type (as reported by the
// DevTools protocol or resource timing initiator) to an asset type.
func TypeForResource(resourceType string) AssetType {
	switch strings.ToLower(resourceType) {
	case "script":
		return TypeScript
	case "stylesheet", "css", "link":
		return TypeStylesheet
	case "image", "img":
		return TypeImage
	case "font":
		return TypeFont
	case "media", "video", "audio":
		return TypeMedia
	case "document", "iframe", "subdocument":
		return TypeDocument
	case "xhr", "fetch", "eventsource", "websocket", "beacon":
		return TypeAPI
	case "manifest", "texttrack":
		return TypeData
	}
	return TypeUnknown
}
