package model

import "gorm.io/gorm"

// Bucket is a named scope in object storage. The externally visible name is
// derived deterministically from the owning entity, so the unique index on
// Name doubles as the (owning entity, kind) uniqueness guard.
type Bucket struct {
	gorm.Model
	Kind        BucketKind `gorm:"type:varchar(32);not null"`
	Name        string     `gorm:"uniqueIndex;type:varchar(128);not null;comment:object storage bucket name"`
	WorkspaceID uint       `gorm:"index;not null"`
	ProjectID   *uint      `gorm:"index"`
	StageID     *uint      `gorm:"index"`
	OwnerID     uint       `gorm:"index;not null;comment:user owning this scope"`
}

// FileRecord is the metadata row for one stored object. A stage file copied
// from a mindspace file carries SourceFileID; (BucketID, SourceFileID) is
// unique so the same source can be copied into a bucket only once.
type FileRecord struct {
	gorm.Model
	BucketID     uint    `gorm:"index;uniqueIndex:idx_file_bucket_source;not null"`
	Path         string  `gorm:"type:varchar(512);not null;comment:object key within the bucket"`
	Name         string  `gorm:"type:varchar(256);not null"`
	Size         int64   `gorm:"type:bigint;not null"`
	MimeType     string  `gorm:"type:varchar(128)"`
	Deliverable  bool    `gorm:"type:boolean;not null;default:false"`
	Final        bool    `gorm:"type:boolean;not null;default:false"`
	SourceFileID *uint   `gorm:"uniqueIndex:idx_file_bucket_source;comment:mindspace file this was copied from"`
	UploadedBy   uint    `gorm:"index;not null"`
	Summary      *string `gorm:"type:text;comment:enrichment summary"`
}
