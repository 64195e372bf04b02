// Package constants vends constants shared across service components, e.g. env
// var names and store key namespaces.
package constants

import "time"

const (
	// -------------- env vars --------------
	// common
	EnvVerbose = "FCB_VERBOSE"
	// stores
	EnvRedisHost   = "REDIS_HOST"
	EnvRedisPort   = "REDIS_PORT"
	EnvRedisPasswd = "REDIS_PASSWD"
	EnvRedisDB     = "REDIS_DB"
	// blob backend
	EnvBlobBackend = "FCB_BLOB_BACKEND" // "s3" or "local"
	EnvBlobDir     = "FCB_BLOB_DIR"
	EnvS3Region    = "S3_REGION"
	EnvS3Bucket    = "S3_BUCKET"
	EnvS3Endpoint  = "S3_ENDPOINT"
	// server
	EnvAppHost         = "FCB_HOST"
	EnvAppPort         = "FCB_PORT"
	EnvMaxFileSizeByte = "FCB_MAX_FILE_SIZE_BYTE"
	EnvMaxTextSizeByte = "FCB_MAX_TEXT_SIZE_BYTE"
	EnvPermanentPasswd = "FCB_PERMANENT_PASSWORD"
	EnvNoticeTTLHours  = "FCB_NOTICE_TTL_HOURS"
	// per-route requests-per-minute limits
	EnvUploadTextRPM  = "FCB_UPLOAD_TEXT_RPM"
	EnvUploadFileRPM  = "FCB_UPLOAD_FILE_RPM"
	EnvUploadChunkRPM = "FCB_UPLOAD_CHUNK_RPM"
	EnvGetInfoRPM     = "FCB_GET_INFO_RPM"
	EnvDownloadRPM    = "FCB_DOWNLOAD_RPM"
	EnvVerifyPermRPM  = "FCB_VERIFY_PERM_RPM"
	// sweeper
	EnvSweepFreq      = "FCB_SWEEP_FREQ"
	EnvSweepBatchSize = "FCB_SWEEP_BATCH_SIZE"

	// -------------- store key namespaces --------------
	// Records, staged chunks and rate-limit counters share one key-value store;
	// distinct prefixes keep the sweeper's record scan from ever touching
	// anything but records.
	KeyPrefixRecord       = "file:"
	KeyPrefixChunk        = "chunk:"
	KeyPrefixRateLimit    = "ratelimit:"
	KeyPrefixNotice       = "notice:"
	KeyPrefixCleanupStats = "cleanup_stats:"

	// -------------- data lifetimes --------------
	// ChunkTTL bounds the lifetime of staged chunks so abandoned uploads
	// self-clean without sweeper involvement.
	ChunkTTL        = 24 * time.Hour
	CleanupStatsTTL = 30 * 24 * time.Hour

	// -------------- logging --------------
	LogFieldFuncName = "funcName"
)
