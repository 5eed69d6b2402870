package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"migrator/native/migration"
	"migrator/native/migration/memledger"
	"migrator/storage"
)

const testAdminToken = "test-token"

func rpcAddress(tag byte) [20]byte {
	var addr [20]byte
	addr[0] = 0xEE
	addr[19] = tag
	return addr
}

var (
	rpcAdmin     = rpcAddress(0xAD)
	rpcCustodian = rpcAddress(0xC0)
	rpcCaller    = rpcAddress(0xCA)
	rpcSink      = rpcAddress(0x51)
)

type rpcFixture struct {
	world  *memledger.World
	oldNFT *memledger.NonFungibleToken
	newNFT *memledger.NonFungibleToken
	server *httptest.Server
}

type worldUnit struct{ world *memledger.World }

func (u worldUnit) Begin() Rollback {
	snap := u.world.Snapshot()
	return func() { u.world.Revert(snap) }
}

func newRPCFixture(t *testing.T) *rpcFixture {
	t.Helper()
	world := memledger.NewWorld()
	oldNFT := world.NewNonFungible(rpcAddress(0x03))
	newNFT := world.NewNonFungible(rpcAddress(0x04))

	engine, err := migration.NewNonFungibleEngine(migration.NonFungibleConfig{
		Old:           oldNFT.Ref(rpcCustodian),
		New:           newNFT.Ref(rpcCustodian),
		Sink:          memledger.NewSink(rpcSink),
		Administrator: rpcAdmin,
		Custodian:     rpcCustodian,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	receipts := migration.NewReceiptLedger(storage.NewMemDB())
	engine.SetReceipts(receipts)

	for id := int64(1); id <= 3; id++ {
		if err := oldNFT.Mint(rpcCaller, big.NewInt(id)); err != nil {
			t.Fatalf("mint old: %v", err)
		}
		if err := newNFT.Mint(rpcCustodian, big.NewInt(id)); err != nil {
			t.Fatalf("mint new: %v", err)
		}
	}
	oldNFT.SetApprovalForAll(rpcCaller, rpcCustodian, true)

	srv := NewServer(Engines{NonFungible: engine}, receipts, worldUnit{world}, nil, testAdminToken, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &rpcFixture{world: world, oldNFT: oldNFT, newNFT: newNFT, server: ts}
}

func (f *rpcFixture) call(t *testing.T, method string, params interface{}, token string) (*http.Response, RPCResponse) {
	t.Helper()
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/rpc", bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var decoded RPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestHealthz(t *testing.T) {
	f := newRPCFixture(t)
	resp, err := http.Get(f.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestMigrateOverRPC(t *testing.T) {
	f := newRPCFixture(t)
	resp, decoded := f.call(t, "migration_migrate", map[string]string{
		"class":   migration.ClassNonFungible,
		"caller":  migration.FormatAddress(rpcCaller),
		"tokenId": "2",
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if decoded.Error != nil {
		t.Fatalf("unexpected error: %+v", decoded.Error)
	}
	if owner, _ := f.newNFT.Owner(big.NewInt(2)); owner != rpcCaller {
		t.Fatalf("new id 2 should belong to the caller")
	}
	if owner, _ := f.oldNFT.Owner(big.NewInt(2)); owner != rpcSink {
		t.Fatalf("old id 2 should rest in the sink")
	}
}

func TestMigrateBatchRollsBackOnFailure(t *testing.T) {
	f := newRPCFixture(t)
	// Revoke the blanket approval so the batch fails on its first element.
	f.oldNFT.SetApprovalForAll(rpcCaller, rpcCustodian, false)

	resp, decoded := f.call(t, "migration_migrateBatch", map[string]interface{}{
		"caller":   migration.FormatAddress(rpcCaller),
		"tokenIds": []string{"1", "2"},
	}, "")
	if resp.StatusCode == http.StatusOK && decoded.Error == nil {
		t.Fatal("expected batch failure")
	}
	for id := int64(1); id <= 2; id++ {
		if owner, _ := f.oldNFT.Owner(big.NewInt(id)); owner != rpcCaller {
			t.Fatalf("old id %d must stay with the caller", id)
		}
	}
}

func TestAdminMethodsRequireToken(t *testing.T) {
	f := newRPCFixture(t)
	params := map[string]string{
		"class":  migration.ClassNonFungible,
		"caller": migration.FormatAddress(rpcAdmin),
	}

	resp, decoded := f.call(t, "migration_pause", params, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if decoded.Error == nil || decoded.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", decoded.Error)
	}

	resp, decoded = f.call(t, "migration_pause", params, "wrong-token")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	resp, decoded = f.call(t, "migration_pause", params, testAdminToken)
	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		t.Fatalf("pause with token failed: %d %+v", resp.StatusCode, decoded.Error)
	}

	// The paused engine must now reject migrations with a conflict.
	resp, decoded = f.call(t, "migration_migrate", map[string]string{
		"class":   migration.ClassNonFungible,
		"caller":  migration.FormatAddress(rpcCaller),
		"tokenId": "1",
	}, "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestStatusAndReceipts(t *testing.T) {
	f := newRPCFixture(t)
	resp, decoded := f.call(t, "migration_migrate", map[string]string{
		"class":   migration.ClassNonFungible,
		"caller":  migration.FormatAddress(rpcCaller),
		"tokenId": "3",
	}, "")
	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		t.Fatalf("migrate failed: %d %+v", resp.StatusCode, decoded.Error)
	}

	resp, decoded = f.call(t, "migration_status", nil, "")
	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		t.Fatalf("status failed: %d %+v", resp.StatusCode, decoded.Error)
	}
	result, ok := decoded.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected status result: %T", decoded.Result)
	}
	if _, ok := result[migration.ClassNonFungible]; !ok {
		t.Fatal("status missing nonfungible engine")
	}
	if head, ok := result["receiptHead"].(float64); !ok || head != 1 {
		t.Fatalf("receiptHead = %v, want 1", result["receiptHead"])
	}

	resp, decoded = f.call(t, "migration_receipts", map[string]interface{}{"from": 0, "limit": 10}, "")
	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		t.Fatalf("receipts failed: %d %+v", resp.StatusCode, decoded.Error)
	}
	list, ok := decoded.Result.([]interface{})
	if !ok || len(list) != 1 {
		t.Fatalf("expected one receipt, got %v", decoded.Result)
	}
}

func TestUnknownMethod(t *testing.T) {
	f := newRPCFixture(t)
	resp, decoded := f.call(t, "migration_bogus", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if decoded.Error == nil || decoded.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", decoded.Error)
	}
}
