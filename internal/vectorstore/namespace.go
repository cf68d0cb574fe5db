package vectorstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// pointNamespace seeds deterministic point UUIDs
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("hybridindex/vector"))

// Namespace derives the partition key for one user's workspace. Distinct
// (userID, workspacePath) pairs map to distinct namespaces.
func Namespace(userID, workspacePath string) string {
	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(cleanPath(workspacePath)))
	return "ns_" + hex.EncodeToString(h.Sum(nil))[:32]
}

// WorkspaceHash is the short stable digest of a workspace root used in vector IDs
func WorkspaceHash(workspacePath string) string {
	sum := sha256.Sum256([]byte(cleanPath(workspacePath)))
	return hex.EncodeToString(sum[:8])
}

// VectorID builds the vector id of one chunk
func VectorID(workspaceHash, filePath string, chunkIndex int) string {
	return fmt.Sprintf("%s::%s::%d", workspaceHash, filepath.ToSlash(filePath), chunkIndex)
}

// ParseVectorID splits a vector id into its parts
func ParseVectorID(id string) (workspaceHash, filePath string, chunkIndex int, err error) {
	first := strings.Index(id, "::")
	last := strings.LastIndex(id, "::")
	if first < 0 || first == last {
		return "", "", 0, fmt.Errorf("malformed vector id %q", id)
	}
	if _, err := fmt.Sscanf(id[last+2:], "%d", &chunkIndex); err != nil {
		return "", "", 0, fmt.Errorf("malformed chunk index in %q: %w", id, err)
	}
	return id[:first], id[first+2 : last], chunkIndex, nil
}

// PointUUID maps a namespaced vector id to a deterministic UUID, so
// re-upserting the same id replaces the existing point.
func PointUUID(namespace, vectorID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(namespace+"/"+vectorID)).String()
}

func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(p))
}
