package objectstore

import (
	"fmt"

	"github.com/google/uuid"
)

// Bucket names are derived deterministically from entity ids so that every
// creation path can look the bucket up before creating it.

func MindspaceBucketName(workspaceID, userID uint) string {
	return fmt.Sprintf("mind-%d-%d", workspaceID, userID)
}

func ProjectBucketName(projectID uint) string {
	return fmt.Sprintf("proj-%d", projectID)
}

func StageBucketName(stageID uint) string {
	return fmt.Sprintf("stage-%d", stageID)
}

// ObjectKey prefixes the original file name with a random id so repeated
// copies of the same file never collide.
func ObjectKey(name string) string {
	return fmt.Sprintf("%s-%s", uuid.NewString(), name)
}
