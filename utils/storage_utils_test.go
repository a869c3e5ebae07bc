package utils

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

type fakeS3 struct {
	s3iface.S3API
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3StoreUpload(t *testing.T) {
	fake := &fakeS3{}
	store := newS3Store(fake, S3Config{Endpoint: "https://object.example.com/", Bucket: "proofs", Folder: "payment-proofs"})

	url, err := store.Upload(context.Background(), []byte("\x89PNG\r\n\x1a\n rest"), "shop-1/a.png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://object.example.com/proofs/payment-proofs/shop-1/a.png" {
		t.Fatalf("url = %q", url)
	}
	if aws.StringValue(fake.input.Key) != "payment-proofs/shop-1/a.png" || aws.StringValue(fake.input.ContentType) != "image/png" {
		t.Fatalf("unexpected input %+v", fake.input)
	}
	if fake.input.ACL != nil {
		t.Fatalf("ACL set without configuration")
	}
}

func TestS3StoreUploadError(t *testing.T) {
	store := newS3Store(&fakeS3{err: errors.New("denied")}, S3Config{Bucket: "proofs", PublicURL: "https://cdn.example.com"})
	if _, err := store.Upload(context.Background(), []byte("x"), "a.jpg"); err == nil {
		t.Fatalf("expected upload error")
	}
}
