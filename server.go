package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis"
	"github.com/julienschmidt/httprouter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"filecodebox.io/fcb/common/logging"
	"filecodebox.io/fcb/common/metrics"
	mw "filecodebox.io/fcb/common/middleware"
	"filecodebox.io/fcb/common/retry"
	"filecodebox.io/fcb/constants"
	"filecodebox.io/fcb/ratelimit"
	"filecodebox.io/fcb/share"
	"filecodebox.io/fcb/stores"
)

type fcbServer struct {
	Svc     *share.Service
	Chunks  *share.ChunkAssembler
	Records stores.RecordStore
	Limiter *ratelimit.Limiter
	Router  *httprouter.Router
}

func (s *fcbServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// start up application server and serve incoming requests
func serve() error {
	// read configuration from env vars
	viper.AutomaticEnv()
	setDefaults()

	logging.SetupLog("filecodebox")

	rs, err := setupRecordStore()
	if err != nil {
		return err
	}
	defer rs.Close()
	bs, err := setupBlobStore()
	if err != nil {
		return err
	}
	defer bs.Close()

	svc := &share.Service{
		Records:     rs,
		Blobs:       bs,
		MaxTextSize: viper.GetInt64(constants.EnvMaxTextSizeByte),
		MaxFileSize: viper.GetInt64(constants.EnvMaxFileSizeByte),
	}
	svr := &fcbServer{
		Svc:     svc,
		Chunks:  &share.ChunkAssembler{Records: rs, Service: svc},
		Records: rs,
		Limiter: ratelimit.NewLimiter(rs),
	}
	svr.SetupMux()

	host, port := viper.GetString(constants.EnvAppHost), viper.GetString(constants.EnvAppPort)
	log.WithFields(log.Fields{
		"host": host,
		"port": port,
	}).Info("server is starting up")
	return http.ListenAndServe(fmt.Sprintf("%s:%s", host, port), svr)
}

func setDefaults() {
	viper.SetDefault(constants.EnvAppPort, "8080")
	viper.SetDefault(constants.EnvRedisHost, "localhost")
	viper.SetDefault(constants.EnvRedisPort, "6379")
	viper.SetDefault(constants.EnvBlobBackend, "local")
	viper.SetDefault(constants.EnvBlobDir, "./data/blobs")
	viper.SetDefault(constants.EnvMaxTextSizeByte, int64(1<<20))
	viper.SetDefault(constants.EnvMaxFileSizeByte, int64(90<<20))
	viper.SetDefault(constants.EnvNoticeTTLHours, 24)
	viper.SetDefault(constants.EnvUploadTextRPM, 20)
	viper.SetDefault(constants.EnvUploadFileRPM, 10)
	viper.SetDefault(constants.EnvUploadChunkRPM, 100)
	viper.SetDefault(constants.EnvGetInfoRPM, 120)
	viper.SetDefault(constants.EnvDownloadRPM, 60)
	viper.SetDefault(constants.EnvVerifyPermRPM, 20)
}

// set up routes
func (s *fcbServer) SetupMux() {
	r := httprouter.New()
	lim := func(name, env string, identity mw.IdentityFn) mw.Middleware {
		return mw.RateLimit(s.Limiter, name, viper.GetInt(env), time.Minute, identity)
	}
	wrap := func(h httprouter.Handle, ms ...mw.Middleware) httprouter.Handle {
		return metrics.Instrument(mw.Chain(h, append(ms, mw.PanicRecoverer())...))
	}

	r.POST("/api/share/text", wrap(s.HandleShareText(),
		lim("upload-text", constants.EnvUploadTextRPM, mw.ClientIdentity)))
	r.POST("/api/share/file", wrap(s.HandleShareFile(),
		lim("upload-file", constants.EnvUploadFileRPM, mw.ClientIdentity)))
	r.POST("/api/share/file/chunk", wrap(s.HandleShareChunk(),
		lim("upload-chunk", constants.EnvUploadChunkRPM, mw.ClientIdentity)))
	r.POST("/api/share/file/merge", wrap(s.HandleShareMerge(),
		lim("upload-merge", constants.EnvUploadFileRPM, mw.ClientIdentity)))
	r.GET("/api/share/:code", wrap(s.HandleGetShare(),
		lim("get-info-code", constants.EnvGetInfoRPM, mw.CodeIdentity)))
	r.GET("/api/share/:code/download", wrap(s.HandleDownload(),
		lim("download-code", constants.EnvDownloadRPM, mw.CodeIdentity)))
	r.GET("/api/health", wrap(s.HandleHealth()))
	r.GET("/api/notice/check", wrap(s.HandleNoticeCheck()))
	r.POST("/api/notice/ack", wrap(s.HandleNoticeAck()))
	r.POST("/api/verify-permanent", wrap(s.HandleVerifyPermanent(),
		lim("verify-permanent", constants.EnvVerifyPermRPM, mw.ClientIdentity)))
	r.Handler(http.MethodGet, "/metrics", metrics.Handler())

	s.Router = r
}

func setupRecordStore() (stores.RecordStore, error) {
	retryOpts := []retry.RetryOption{
		retry.WithTimeout(3 * time.Second),
		retry.WithBaseDelay(100 * time.Millisecond),
		retry.WithExp(2.0),
		retry.WithRetryOn(retry.IsDepOffline),
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:       fmt.Sprintf("%s:%s", viper.GetString(constants.EnvRedisHost), viper.GetString(constants.EnvRedisPort)),
		Password:   viper.GetString(constants.EnvRedisPasswd),
		DB:         viper.GetInt(constants.EnvRedisDB),
		MaxRetries: 3,
	})
	// verify the client is up correctly
	pingFn := func() error {
		_, err := redisClient.Ping().Result()
		return err
	}
	if err := retry.Retry(pingFn, retryOpts...); err != nil {
		return nil, fmt.Errorf("failed initializing Redis: %w", err)
	}
	return &stores.RedisRecordStore{DB: redisClient}, nil
}

func setupBlobStore() (stores.BlobStore, error) {
	switch backend := viper.GetString(constants.EnvBlobBackend); backend {
	case "s3":
		return stores.SetupS3BlobStore(
			context.Background(),
			viper.GetString(constants.EnvS3Region),
			viper.GetString(constants.EnvS3Bucket),
			viper.GetString(constants.EnvS3Endpoint),
		)
	case "local":
		return &stores.LocalBlobStore{Dir: viper.GetString(constants.EnvBlobDir)}, nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", backend)
	}
}
