//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/GoldenEggs-Workshop/spend-what-server/config"
	"github.com/GoldenEggs-Workshop/spend-what-server/internal/db"
	"github.com/GoldenEggs-Workshop/spend-what-server/internal/server"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestBillLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := time.Now().UnixNano()
	aliceName := fmt.Sprintf("alice_%d", suffix)
	carolName := fmt.Sprintf("carol_%d", suffix)
	password := "testpass123!"

	aliceToken, err := registerAndLogin(t, baseURL, aliceName, password)
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	carolToken, err := registerAndLogin(t, baseURL, carolName, password)
	if err != nil {
		t.Fatalf("register carol: %v", err)
	}

	bill, err := createBill(t, baseURL, aliceToken, "Trip")
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if bill.Title != "Trip" {
		t.Fatalf("unexpected bill title: %q", bill.Title)
	}
	if bill.ID == 0 {
		t.Fatalf("expected bill ID to be set")
	}

	member, err := addMember(t, baseURL, aliceToken, bill.ID, "Bob")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}

	item, err := createItem(t, baseURL, aliceToken, bill.ID, member.ID)
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if item.Amount != "12.34" {
		t.Fatalf("unexpected item amount: %q", item.Amount)
	}

	// carol has no access yet.
	if status := getBillStatus(t, baseURL, carolToken, bill.ID); status != http.StatusForbidden {
		t.Fatalf("expected 403 for carol before redemption, got %d", status)
	}

	shareToken, err := issueShare(t, baseURL, aliceToken, bill.ID)
	if err != nil {
		t.Fatalf("issue share: %v", err)
	}
	redeemedBill, err := consumeShare(t, baseURL, carolToken, shareToken)
	if err != nil {
		t.Fatalf("consume share: %v", err)
	}
	if redeemedBill != bill.ID {
		t.Fatalf("redeemed bill id %d, want %d", redeemedBill, bill.ID)
	}

	fetched, err := getBill(t, baseURL, carolToken, bill.ID)
	if err != nil {
		t.Fatalf("get bill as carol: %v", err)
	}
	if fetched.Title != "Trip" {
		t.Fatalf("unexpected fetched title: %q", fetched.Title)
	}
	if len(fetched.Members) != 1 || fetched.Members[0].Name != "Bob" {
		t.Fatalf("unexpected roster: %+v", fetched.Members)
	}

	if err := uploadReceipt(t, baseURL, aliceToken, bill.ID, item.ID); err != nil {
		t.Fatalf("upload receipt: %v", err)
	}
	data, err := downloadReceipt(t, baseURL, carolToken, bill.ID, item.ID)
	if err != nil {
		t.Fatalf("download receipt: %v", err)
	}
	if string(data) != "receipt bytes" {
		t.Fatalf("unexpected receipt payload: %q", data)
	}

	if err := deleteBills(t, baseURL, aliceToken, []int64{bill.ID}); err != nil {
		t.Fatalf("delete bill: %v", err)
	}
	if status := getBillStatus(t, baseURL, aliceToken, bill.ID); status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

type billResponse struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Members []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"members"`
}

type memberResponse struct {
	ID int64 `json:"id"`
}

type itemResponse struct {
	ID     int64  `json:"id"`
	Amount string `json:"amount"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func registerAndLogin(t *testing.T, baseURL, username, password string) (string, error) {
	t.Helper()

	creds := map[string]string{"username": username, "password": password}
	if _, err := postJSON(baseURL+"/api/user/register", "", creds, http.StatusCreated, nil); err != nil {
		return "", err
	}

	var parsed loginResponse
	if _, err := postJSON(baseURL+"/api/user/login", "", creds, http.StatusOK, &parsed); err != nil {
		return "", err
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("missing token in login response")
	}
	return parsed.Token, nil
}

func createBill(t *testing.T, baseURL, token, title string) (billResponse, error) {
	t.Helper()

	var parsed billResponse
	_, err := postJSON(baseURL+"/api/bill/create", token, map[string]string{"title": title}, http.StatusCreated, &parsed)
	return parsed, err
}

func getBill(t *testing.T, baseURL, token string, billID int64) (billResponse, error) {
	t.Helper()

	var parsed billResponse
	_, err := postJSON(baseURL+"/api/bill/get", token, map[string]int64{"bill_id": billID}, http.StatusOK, &parsed)
	return parsed, err
}

func getBillStatus(t *testing.T, baseURL, token string, billID int64) int {
	t.Helper()

	status, _ := postJSON(baseURL+"/api/bill/get", token, map[string]int64{"bill_id": billID}, 0, nil)
	return status
}

func addMember(t *testing.T, baseURL, token string, billID int64, name string) (memberResponse, error) {
	t.Helper()

	var parsed memberResponse
	_, err := postJSON(baseURL+"/api/bill/member/add", token, map[string]any{
		"bill_id": billID,
		"name":    name,
	}, http.StatusCreated, &parsed)
	return parsed, err
}

func createItem(t *testing.T, baseURL, token string, billID, memberID int64) (itemResponse, error) {
	t.Helper()

	var parsed itemResponse
	_, err := postJSON(baseURL+"/api/bill/item/create", token, map[string]any{
		"bill_id":       billID,
		"type":          "food",
		"description":   "street food",
		"amount":        "12.34",
		"currency":      "CNY",
		"paid_by":       memberID,
		"occurred_time": time.Now().UTC().Format(time.RFC3339),
	}, http.StatusCreated, &parsed)
	return parsed, err
}

func issueShare(t *testing.T, baseURL, token string, billID int64) (string, error) {
	t.Helper()

	var parsed struct {
		Token string `json:"token"`
	}
	_, err := postJSON(baseURL+"/api/bill/share/", token, map[string]any{
		"bill_id":     billID,
		"access_role": "observer",
	}, http.StatusCreated, &parsed)
	return parsed.Token, err
}

func consumeShare(t *testing.T, baseURL, token, shareToken string) (int64, error) {
	t.Helper()

	var parsed struct {
		BillID int64 `json:"bill_id"`
	}
	_, err := postJSON(baseURL+"/api/bill/share/consume", token, map[string]string{"token": shareToken}, http.StatusOK, &parsed)
	return parsed.BillID, err
}

func deleteBills(t *testing.T, baseURL, token string, ids []int64) error {
	t.Helper()

	_, err := postJSON(baseURL+"/api/bill/multi/delete", token, map[string]any{"id_list": ids}, http.StatusOK, nil)
	return err
}

func uploadReceipt(t *testing.T, baseURL, token string, billID, itemID int64) error {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("bill_id", strconv.FormatInt(billID, 10))
	_ = writer.WriteField("item_id", strconv.FormatInt(itemID, 10))
	part, err := writer.CreateFormFile("file", "receipt.png")
	if err != nil {
		return err
	}
	if _, err := part.Write([]byte("receipt bytes")); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/bill/item/receipt/upload", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload receipt status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func downloadReceipt(t *testing.T, baseURL, token string, billID, itemID int64) ([]byte, error) {
	t.Helper()

	url := fmt.Sprintf("%s/api/bill/item/receipt?bill_id=%d&item_id=%d", baseURL, billID, itemID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("download receipt status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return io.ReadAll(resp.Body)
}

// postJSON posts a JSON payload with an optional bearer token. When
// wantStatus is zero the status is returned without being checked.
func postJSON(url, token string, payload any, wantStatus int, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if wantStatus != 0 && resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("%s status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func startServer() (*server.Server, error) {
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "spendwhat")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "spendwhat_db")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("STORAGE_BACKEND", "minio")
	_ = os.Setenv("MINIO_ENDPOINT", "localhost:9000")
	_ = os.Setenv("MINIO_ACCESS_KEY", "minioadmin")
	_ = os.Setenv("MINIO_SECRET_KEY", "minioadmin")
	_ = os.Setenv("MINIO_BUCKET", "spendwhat-receipts")

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.URL(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, db.URL(cfg))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
