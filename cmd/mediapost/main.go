// Command mediapost uploads media files and creates a post referencing them.
//
//	mediapost -message "launch day" -media 'clips/**/*.mp4' -media s3://bucket/cover.png
//
// Settings are read from MEDIA_* environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bitrise-io/go-mediaupload/analytics"
	"github.com/bitrise-io/go-mediaupload/config"
	"github.com/bitrise-io/go-mediaupload/media/transport"
	"github.com/bitrise-io/go-mediaupload/media/upload"
	"github.com/bitrise-io/go-mediaupload/post"
	utilsanalytics "github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.NewLogger()
	if err := run(ctx, os.Args[1:], env.NewRepository(), logger, os.Stdout); err != nil {
		logger.Errorf("%s", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, repository env.Repository, logger log.Logger, out io.Writer) error {
	flags := flag.NewFlagSet("mediapost", flag.ContinueOnError)
	message := flags.String("message", "", "Text of the post")
	var media mediaFlag
	flags.Var(&media, "media", "Media to attach: a path glob, s3://bucket/key or http(s) URL (repeatable)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*message) == "" && len(media) == 0 {
		flags.Usage()
		return fmt.Errorf("nothing to post: give -message or -media")
	}

	settings, err := config.Load(repository)
	if err != nil {
		return err
	}
	logger.EnableDebugLog(settings.Verbose)

	opener := &sourceOpener{
		s3Params:    settings.S3,
		downloadDir: settings.DownloadDir,
		logger:      logger,
	}
	defer opener.cleanup()

	sources, err := opener.open(ctx, media)
	if err != nil {
		return err
	}
	defer closeSources(sources, logger)

	signer := transport.BearerToken(settings.AccessToken)

	var tracker utilsanalytics.Tracker
	if settings.Analytics {
		tracker = analytics.NewDefaultUploadTracker(repository, logger, settings.APIVersion)
	}

	uploader, err := upload.NewUploader(transport.NewHTTPClient(settings.UploadBaseURL, signer, logger), settings.Upload, logger, tracker)
	if err != nil {
		return err
	}
	defer uploader.Wait()

	apiClient := transport.NewHTTPClient(settings.APIBaseURL, signer, logger)
	var poster post.Poster
	switch settings.APIVersion {
	case config.APIVersionV1:
		poster = post.NewV1Poster(apiClient)
	default:
		poster = post.NewV2Poster(apiClient)
	}

	status, err := post.NewPublisher(uploader, poster, logger).Publish(ctx, *message, sources...)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, status.ID)
	return err
}
