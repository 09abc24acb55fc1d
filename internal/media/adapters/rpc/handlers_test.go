package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/teajhaney/shopstack-microservices/internal/contracts"
	"github.com/teajhaney/shopstack-microservices/internal/media/adapters/memory"
	"github.com/teajhaney/shopstack-microservices/internal/media/application"
	platformrpc "github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
	"github.com/teajhaney/shopstack-microservices/internal/platform/registry"
)

type fixture struct {
	reg    *registry.Registry
	assets *memory.AssetRepository
	blobs  *memory.BlobStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assets := memory.NewAssetRepository()
	blobs := memory.NewBlobStore("http://cdn.local")
	svc := application.NewService(application.Dependencies{
		Config: application.Config{MaxUploadBytes: 1024},
		Assets: assets,
		Blobs:  blobs,
		Logger: logger,
	})
	reg := registry.New(contracts.ServiceMedia, logger)
	Register(reg, svc)
	return fixture{reg: reg, assets: assets, blobs: blobs}
}

func (f fixture) call(t *testing.T, pattern string, payload any, out any) error {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	data, err := f.reg.HandleRequest(context.Background(), platformrpc.Request{Pattern: pattern, Payload: raw}).Result()
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode reply: %v", err)
		}
	}
	return nil
}

func (f fixture) upload(t *testing.T, body []byte) application.UploadResult {
	t.Helper()
	var out application.UploadResult
	err := f.call(t, contracts.PatternMediaUpload, map[string]any{
		"fileName":   "mug.png",
		"mimeType":   "image/png",
		"base64":     base64.StdEncoding.EncodeToString(body),
		"uploaderId": "user_1",
	}, &out)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return out
}

func (f fixture) deleted(t *testing.T, productID string) error {
	t.Helper()
	raw, _ := json.Marshal(contracts.ProductDeleted{ProductID: productID})
	return f.reg.HandleEvent(context.Background(), platformrpc.Event{
		ID: "ev-1", Topic: contracts.TopicProductDeleted, Source: contracts.ServiceCatalog, Time: time.Now(), Payload: raw,
	})
}

func TestUploadStoresBlobAndRecord(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	out := f.upload(t, []byte("png-bytes"))
	if out.MediaID == "" || !strings.HasPrefix(out.URL, "http://cdn.local/products/") {
		t.Fatalf("unexpected upload result: %+v", out)
	}
	asset, ok := f.assets.Get(out.MediaID)
	if !ok || !f.blobs.Has(asset.ObjectKey) {
		t.Fatalf("record or blob missing: %+v", asset)
	}
}

func TestUploadRejectsNonImageBeforeStoring(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	err := f.call(t, contracts.PatternMediaUpload, map[string]any{
		"fileName": "doc.pdf", "mimeType": "application/pdf", "base64": "eA==", "uploaderId": "user_1",
	}, nil)
	if !platformrpc.IsCode(err, platformrpc.CodeValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.blobs.Len() != 0 || f.assets.Len() != 0 {
		t.Fatalf("rejected upload left state behind")
	}
}

func TestUploadOverLimitIsBadRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	err := f.call(t, contracts.PatternMediaUpload, map[string]any{
		"fileName":   "big.png",
		"mimeType":   "image/png",
		"base64":     base64.StdEncoding.EncodeToString(make([]byte, 2048)),
		"uploaderId": "user_1",
	}, nil)
	if !platformrpc.IsCode(err, platformrpc.CodeBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestFailedInsertRemovesBlob(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.assets.Err = errors.New("connection reset")

	err := f.call(t, contracts.PatternMediaUpload, map[string]any{
		"fileName": "mug.png", "mimeType": "image/png", "base64": "eA==", "uploaderId": "user_1",
	}, nil)
	var rpcErr *platformrpc.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != platformrpc.CodeInternal || rpcErr.Message != platformrpc.GenericInternalMessage {
		t.Fatalf("expected generic internal error, got %v", err)
	}
	if f.blobs.Len() != 0 {
		t.Fatalf("blob left behind after failed insert")
	}
}

func TestAttachUnknownMediaIsNotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, id := range []string{"not-a-uuid", "7d1b6a40-3d1f-4b8e-9a53-0e2f9f0c1c11"} {
		err := f.call(t, contracts.PatternMediaAttach, map[string]any{"mediaId": id, "productId": "p1"}, nil)
		if !platformrpc.IsCode(err, platformrpc.CodeNotFound) {
			t.Fatalf("%s: expected NOT_FOUND, got %v", id, err)
		}
	}
}

func TestAttachThenProductDeletedRemovesAssets(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	kept := f.upload(t, []byte("other"))
	up := f.upload(t, []byte("png"))

	var attached application.AttachResult
	if err := f.call(t, contracts.PatternMediaAttach, map[string]any{
		"mediaId": up.MediaID, "productId": "p1", "attachedBy": "admin_1",
	}, &attached); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if attached.ProductID != "p1" || attached.AttachedBy != "admin_1" {
		t.Fatalf("unexpected attach result: %+v", attached)
	}

	for i := 0; i < 2; i++ {
		if err := f.deleted(t, "p1"); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if _, ok := f.assets.Get(up.MediaID); ok {
		t.Fatalf("attached asset survived product deletion")
	}
	if _, ok := f.assets.Get(kept.MediaID); !ok || f.blobs.Len() != 1 {
		t.Fatalf("unattached asset should remain")
	}
}
