package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go-file-share/internal/model"
	"go-file-share/internal/storage"

	errors "github.com/Laisky/errors/v2"
)

// APIError 服务端返回的非成功响应
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// LoginResult 登录成功后的身份
type LoginResult struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

type response struct {
	Message string           `json:"message"`
	UserID  uint             `json:"user_id"`
	FileID  uint             `json:"file_id"`
	Files   []model.FileView `json:"files"`
}

// APIClient 调用文件共享服务的请求/响应接口。所有调用都受超时约束
type APIClient struct {
	baseURL string
	http    *http.Client
	token   string
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken 之后的请求都携带 Bearer token
func (c *APIClient) SetToken(token string) {
	c.token = token
}

func (c *APIClient) BaseURL() string {
	return c.baseURL
}

func (c *APIClient) Register(ctx context.Context, username, password string) (uint, error) {
	var resp response
	err := c.postForm(ctx, "/register", url.Values{"username": {username}, "password": {password}}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.UserID, nil
}

// Login 登录并记住返回的 token
func (c *APIClient) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var result LoginResult
	err := c.postForm(ctx, "/login", url.Values{"username": {username}, "password": {password}}, &result)
	if err != nil {
		return nil, err
	}
	if result.Username == "" {
		result.Username = username
	}
	if result.Token != "" {
		c.token = result.Token
	}
	return &result, nil
}

// RegisterFile 上传本地文件并登记到目录
func (c *APIClient) RegisterFile(ctx context.Context, userID uint, username, path string) (uint, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("username", username)
	_ = writer.WriteField("user_id", strconv.FormatUint(uint64(userID), 10))
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return 0, errors.Wrap(err, "create form file")
	}
	if _, err := io.Copy(part, f); err != nil {
		return 0, errors.Wrapf(err, "read %s", path)
	}
	if err := writer.Close(); err != nil {
		return 0, errors.Wrap(err, "close multipart body")
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/register_file", &body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp response
	if err := c.do(req, &resp); err != nil {
		return 0, err
	}
	return resp.FileID, nil
}

func (c *APIClient) Search(ctx context.Context, query, fileType string) ([]model.FileView, error) {
	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}
	if fileType != "" {
		params.Set("type", fileType)
	}
	path := "/search"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.getFiles(ctx, path)
}

// SharedBy 某个用户分享的文件
func (c *APIClient) SharedBy(ctx context.Context, username string) ([]model.FileView, error) {
	return c.getFiles(ctx, "/users/"+url.PathEscape(username)+"/files")
}

func (c *APIClient) Rate(ctx context.Context, fileID, userID uint, score int) error {
	form := url.Values{
		"file_id": {strconv.FormatUint(uint64(fileID), 10)},
		"user_id": {strconv.FormatUint(uint64(userID), 10)},
		"rating":  {strconv.Itoa(score)},
	}
	return c.postForm(ctx, "/rate_file", form, nil)
}

// Download 把文件保存到 destDir，返回保存的路径。文件名取自响应头并去掉目录部分
func (c *APIClient) Download(ctx context.Context, fileID uint, destDir string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/download/%d", fileID), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "download")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	name := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		name = storage.SanitizeName(params["filename"])
	}
	if name == "" {
		name = fmt.Sprintf("file-%d", fileID)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create %s", destDir)
	}
	dest := filepath.Join(destDir, name)
	out, err := os.Create(dest)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", dest)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return "", errors.Wrapf(err, "write %s", dest)
	}
	if err := out.Close(); err != nil {
		return "", errors.Wrapf(err, "close %s", dest)
	}
	return dest, nil
}

func (c *APIClient) getFiles(ctx context.Context, path string) ([]model.FileView, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var resp response
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

func (c *APIClient) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "build request %s %s", method, path)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *APIClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode response of %s", req.URL.Path)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Message = body.Message
	}
	return apiErr
}
