package oss

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/rotisserie/eris"

	"github.com/qs3c/apply_go_server/config"
)

// RefPrefix 截图引用前缀，区分本地文件
const RefPrefix = "oss://"

type Client struct {
	client     *oss.Client
	bucket     *oss.Bucket
	bucketName string
	cdnDomain  string
}

func NewClient(cfg *config.OSSConfig) (*Client, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, eris.Wrap(err, "oss: create client")
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, eris.Wrap(err, "oss: get bucket")
	}

	return &Client{
		client:     client,
		bucket:     bucket,
		bucketName: cfg.BucketName,
		cdnDomain:  cfg.CDNDomain,
	}, nil
}

// ScreenshotKey 截图对象路径
func ScreenshotKey(applicationID int64, name string) string {
	return fmt.Sprintf("screenshots/%d/%s", applicationID, path.Base(name))
}

// UploadScreenshot 上传截图，返回 oss:// 引用
func (c *Client) UploadScreenshot(applicationID int64, name string, data []byte) (string, error) {
	objectKey := ScreenshotKey(applicationID, name)

	err := c.bucket.PutObject(objectKey, bytes.NewReader(data), oss.ContentType(getContentType(path.Ext(name))))
	if err != nil {
		return "", eris.Wrapf(err, "oss: upload %s", objectKey)
	}

	return RefPrefix + objectKey, nil
}

// Delete 删除文件
func (c *Client) Delete(objectKey string) error {
	if err := c.bucket.DeleteObject(objectKey); err != nil {
		return eris.Wrapf(err, "oss: delete %s", objectKey)
	}
	return nil
}

// GetURL 获取公开访问 URL
func (c *Client) GetURL(objectKey string) string {
	if c.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", c.cdnDomain, objectKey)
	}
	return fmt.Sprintf("https://%s.%s/%s", c.bucketName, c.client.Config.Endpoint, objectKey)
}

// GetSignedURL 生成带签名的临时访问URL（默认1小时有效）
func (c *Client) GetSignedURL(objectKey string, expireSeconds ...int64) (string, error) {
	expire := int64(3600)
	if len(expireSeconds) > 0 && expireSeconds[0] > 0 {
		expire = expireSeconds[0]
	}

	signedURL, err := c.bucket.SignURL(objectKey, oss.HTTPGet, expire)
	if err != nil {
		return "", eris.Wrap(err, "oss: sign url")
	}

	return signedURL, nil
}

// ObjectKey 从 oss:// 引用中取出 object key，不是 OSS 引用时返回 false
func ObjectKey(ref string) (string, bool) {
	if !strings.HasPrefix(ref, RefPrefix) {
		return "", false
	}
	return strings.TrimPrefix(ref, RefPrefix), true
}

// getContentType 根据扩展名获取 Content-Type
func getContentType(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
