package s3obs

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cuemby/osbench/pkg/checkpoint"
	"github.com/cuemby/osbench/pkg/obs"
)

// UploadFile uploads a local file as one object. Files no larger than the
// part size go up in a single request; larger files use a multipart session
// with strictly sequential parts. With checkpointing enabled and a store
// attached, an interrupted multipart upload resumes from the last accepted
// part on the next run.
func (c *Client) UploadFile(ctx context.Context, opts *obs.RequestOptions, key string, cfg *obs.UploadFileConfig, h *obs.UploadFileHandler) obs.Status {
	done := func(s obs.Status, msg string, parts int) obs.Status {
		if h.Done != nil {
			h.Done(s, msg, parts)
		}
		var err error
		if s != obs.StatusOK && msg != "" {
			err = fmt.Errorf("%s", msg)
		}
		return finish(&h.ResponseHandler, s, err)
	}

	f, err := os.Open(cfg.SourcePath)
	if err != nil {
		return done(obs.StatusOpenFileFailed, err.Error(), 0)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return done(obs.StatusOpenFileFailed, err.Error(), 0)
	}
	size := st.Size()
	if size == 0 {
		return done(obs.StatusEmptyFile, "source file is empty", 0)
	}

	partSize := cfg.PartSize
	if partSize <= 0 {
		partSize = 5 * 1024 * 1024
	}

	cl, err := c.clientFor(opts)
	if err != nil {
		return done(obs.StatusInvalidParameter, err.Error(), 0)
	}

	if size <= partSize {
		ctx, cancel := c.opContext(ctx, opts)
		defer cancel()
		_, err := cl.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(opts.Bucket),
			Key:           aws.String(key),
			Body:          f,
			ContentLength: aws.Int64(size),
		})
		if err != nil {
			return done(mapError(err), err.Error(), 0)
		}
		return done(obs.StatusOK, "", 1)
	}

	partCount := int((size + partSize - 1) / partSize)

	var state *checkpoint.State
	useCheckpoint := cfg.EnableCheckpoint && c.Checkpoints != nil
	if useCheckpoint {
		state, err = c.Checkpoints.Load(opts.Bucket, key)
		if err != nil {
			return done(obs.StatusInternalError, err.Error(), 0)
		}
		if state != nil && (state.PartSize != partSize || state.TotalSize != size) {
			// Source or plan changed since the checkpoint was taken.
			state = nil
		}
	}

	uploadID := ""
	if state != nil {
		uploadID = state.UploadID
	} else {
		initCtx, cancel := c.opContext(ctx, opts)
		out, ierr := cl.CreateMultipartUpload(initCtx, &s3.CreateMultipartUploadInput{
			Bucket: aws.String(opts.Bucket),
			Key:    aws.String(key),
		})
		cancel()
		if ierr != nil {
			return done(mapError(ierr), ierr.Error(), 0)
		}
		uploadID = aws.ToString(out.UploadId)
		state = &checkpoint.State{
			Key:       key,
			UploadID:  uploadID,
			PartSize:  partSize,
			TotalSize: size,
			Parts:     make(map[int]string),
		}
	}

	for i := 0; i < partCount; i++ {
		partNum := i + 1
		if _, doneAlready := state.Parts[partNum]; doneAlready {
			continue
		}
		offset := int64(i) * partSize
		length := size - offset
		if length > partSize {
			length = partSize
		}

		partCtx, cancel := c.opContext(ctx, opts)
		out, perr := cl.UploadPart(partCtx, &s3.UploadPartInput{
			Bucket:        aws.String(opts.Bucket),
			Key:           aws.String(key),
			UploadId:      aws.String(uploadID),
			PartNumber:    aws.Int32(int32(partNum)),
			Body:          io.NewSectionReader(f, offset, length),
			ContentLength: aws.Int64(length),
		})
		cancel()
		if perr != nil {
			if useCheckpoint {
				// Keep the checkpoint so the next run resumes here.
				_ = c.Checkpoints.Save(opts.Bucket, key, state)
			} else {
				c.abortUpload(ctx, cl, opts, key, uploadID)
			}
			return done(mapError(perr), perr.Error(), i)
		}
		state.Parts[partNum] = aws.ToString(out.ETag)
		if useCheckpoint {
			if serr := c.Checkpoints.Save(opts.Bucket, key, state); serr != nil {
				return done(obs.StatusInternalError, serr.Error(), i)
			}
		}
	}

	completed := make([]s3types.CompletedPart, 0, partCount)
	for i := 1; i <= partCount; i++ {
		completed = append(completed, s3types.CompletedPart{
			ETag:       aws.String(state.Parts[i]),
			PartNumber: aws.Int32(int32(i)),
		})
	}
	compCtx, cancel := c.opContext(ctx, opts)
	defer cancel()
	_, cerr := cl.CompleteMultipartUpload(compCtx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(opts.Bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &s3types.CompletedMultipartUpload{Parts: completed},
	})
	if cerr != nil {
		return done(mapError(cerr), cerr.Error(), partCount)
	}
	if useCheckpoint {
		_ = c.Checkpoints.Delete(opts.Bucket, key)
	}
	return done(obs.StatusOK, "", partCount)
}

func (c *Client) abortUpload(ctx context.Context, cl *s3.Client, opts *obs.RequestOptions, key, uploadID string) {
	abortCtx, cancel := c.opContext(ctx, opts)
	defer cancel()
	_, _ = cl.AbortMultipartUpload(abortCtx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(opts.Bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
}
