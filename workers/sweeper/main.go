// Package sweeper vends a long-running worker to reclaim expired shares
// and their blob content.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"filecodebox.io/fcb/common/logging"
	"filecodebox.io/fcb/common/metrics"
	rt "filecodebox.io/fcb/common/retry"
	cst "filecodebox.io/fcb/constants"
	"filecodebox.io/fcb/stores"
	"filecodebox.io/fcb/sweep"
)

func main() {
	if err := runSweeper(); err != nil {
		log.WithError(err).Fatal("error running sweeper")
	}
}

func runSweeper() error {
	viper.AutomaticEnv()
	viper.SetDefault(cst.EnvRedisHost, "localhost")
	viper.SetDefault(cst.EnvRedisPort, "6379")
	viper.SetDefault(cst.EnvBlobBackend, "local")
	viper.SetDefault(cst.EnvBlobDir, "./data/blobs")
	viper.SetDefault(cst.EnvSweepFreq, "5m")
	viper.SetDefault(cst.EnvSweepBatchSize, 10)
	logging.SetupLog("fcb-sweeper")

	clog := logging.WithFuncName()
	rs, err := setupRecordStore()
	if err != nil {
		clog.WithError(err).Error("error setting up record store")
		return err
	}
	defer rs.Close()
	bs, err := setupBlobStore()
	if err != nil {
		clog.WithError(err).Error("error setting up blob store")
		return err
	}
	defer bs.Close()

	s := &sweep.Sweeper{
		Records:   rs,
		Blobs:     bs,
		BatchSize: viper.GetInt(cst.EnvSweepBatchSize),
	}
	return run(s)
}

func run(s *sweep.Sweeper) error {
	clog := logging.WithFuncName()
	freq := viper.GetDuration(cst.EnvSweepFreq)
	if freq <= 0 {
		clog.WithField("sweepFrequency", freq).Fatal("got non-positive sweep frequency")
	}
	tkr := time.NewTicker(freq)
	defer tkr.Stop()
	// ensure the worker can be responsive to system signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, os.Interrupt)
	ctx := context.Background()
	for {
		select {
		case <-tkr.C:
			res := s.Sweep(ctx)
			metrics.SweptShares.Add(float64(res.Cleaned))
			metrics.SweepErrors.Add(float64(res.Errors))
			s.RecordStats(res)
		case sig := <-sigChan:
			clog.WithField("signal", sig).Info("shutting down")
			return nil
		}
	}
}

func setupRecordStore() (stores.RecordStore, error) {
	retryOpts := []rt.RetryOption{
		rt.WithTimeout(3 * time.Second),
		rt.WithBaseDelay(100 * time.Millisecond),
		rt.WithExp(2.0),
		rt.WithRetryOn(rt.IsDepOffline),
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:       fmt.Sprintf("%s:%s", viper.GetString(cst.EnvRedisHost), viper.GetString(cst.EnvRedisPort)),
		Password:   viper.GetString(cst.EnvRedisPasswd),
		DB:         viper.GetInt(cst.EnvRedisDB),
		MaxRetries: 3,
	})
	// verify the client is up correctly
	pingFn := func() error {
		_, err := redisClient.Ping().Result()
		return err
	}
	if err := rt.Retry(pingFn, retryOpts...); err != nil {
		return nil, fmt.Errorf("failed initializing Redis: %w", err)
	}
	return &stores.RedisRecordStore{DB: redisClient}, nil
}

func setupBlobStore() (stores.BlobStore, error) {
	switch backend := viper.GetString(cst.EnvBlobBackend); backend {
	case "s3":
		return stores.SetupS3BlobStore(
			context.Background(),
			viper.GetString(cst.EnvS3Region),
			viper.GetString(cst.EnvS3Bucket),
			viper.GetString(cst.EnvS3Endpoint),
		)
	case "local":
		return &stores.LocalBlobStore{Dir: viper.GetString(cst.EnvBlobDir)}, nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", backend)
	}
}
