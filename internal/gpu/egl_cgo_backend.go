//go:build cgo
// +build cgo

package gpu

/*
#cgo pkg-config: egl glesv2 gbm
#include <EGL/egl.h>
#include <EGL/eglext.h>
#include <GLES2/gl2.h>
#include <gbm.h>
#include <stdlib.h>
#include <string.h>

static EGLint dmabuf_attrs_base[] = {
    EGL_WIDTH, 0,
    EGL_HEIGHT, 0,
    EGL_LINUX_DRM_FOURCC_EXT, 0,
    EGL_DMA_BUF_PLANE0_FD_EXT, 0,
    EGL_DMA_BUF_PLANE0_OFFSET_EXT, 0,
    EGL_DMA_BUF_PLANE0_PITCH_EXT, 0,
    EGL_NONE,
};

static EGLDisplay egl_open(int gbm_fd, struct gbm_device **out_gbm) {
    struct gbm_device *gbm = gbm_create_device(gbm_fd);
    if (!gbm) {
        return EGL_NO_DISPLAY;
    }
    EGLDisplay dpy = eglGetDisplay((EGLNativeDisplayType)gbm);
    if (dpy == EGL_NO_DISPLAY) {
        gbm_device_destroy(gbm);
        return EGL_NO_DISPLAY;
    }
    EGLint major, minor;
    if (!eglInitialize(dpy, &major, &minor)) {
        gbm_device_destroy(gbm);
        return EGL_NO_DISPLAY;
    }
    *out_gbm = gbm;
    return dpy;
}

static EGLImageKHR egl_import_dmabuf(EGLDisplay dpy, int fd, int width, int height, unsigned int fourcc, unsigned int offset, unsigned int pitch) {
    EGLint attrs[] = {
        EGL_WIDTH, width,
        EGL_HEIGHT, height,
        EGL_LINUX_DRM_FOURCC_EXT, (EGLint)fourcc,
        EGL_DMA_BUF_PLANE0_FD_EXT, fd,
        EGL_DMA_BUF_PLANE0_OFFSET_EXT, (EGLint)offset,
        EGL_DMA_BUF_PLANE0_PITCH_EXT, (EGLint)pitch,
        EGL_NONE,
    };
    return eglCreateImageKHR(dpy, EGL_NO_CONTEXT, EGL_LINUX_DMA_BUF_EXT, NULL, attrs);
}
*/
import "C"

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
)

// eglRenderer is the production Renderer backend: a GBM device plus an
// EGL display used to import dmabufs as EGLImages, mirroring the
// teacher's one-struct-per-backend cgo shape. It issues no GLES2 draw
// calls itself.
type eglRenderer struct {
	path string
	fd   int
	dpy  C.EGLDisplay
	gbm  *C.struct_gbm_device

	mu       sync.Mutex
	textures map[uint64]C.EGLImageKHR
	nextID   uint64
}

func newRenderer(devicePath string, fd uintptr) (Renderer, error) {
	f, err := os.OpenFile(devicePath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("gpu: open %s for EGL: %w", devicePath, err)
	}

	var gbm *C.struct_gbm_device
	dpy := C.egl_open(C.int(f.Fd()), &gbm)
	if dpy == C.EGL_NO_DISPLAY {
		f.Close()
		return nil, fmt.Errorf("gpu: eglGetDisplay/eglInitialize failed for %s", devicePath)
	}

	return &eglRenderer{
		path:     devicePath,
		fd:       int(f.Fd()),
		dpy:      dpy,
		gbm:      gbm,
		textures: make(map[uint64]C.EGLImageKHR),
	}, nil
}

func (r *eglRenderer) DevicePath() string { return r.path }

func (r *eglRenderer) ImportDmabuf(fd int, width, height int32, format uint32, modifier uint64) (uint64, error) {
	img := C.egl_import_dmabuf(r.dpy, C.int(fd), C.int(width), C.int(height), C.uint(format), 0, C.uint(width*4))
	if img == nil {
		return 0, fmt.Errorf("gpu: eglCreateImageKHR failed for format 0x%08x", format)
	}

	id := atomic.AddUint64(&r.nextID, 1)
	r.mu.Lock()
	r.textures[id] = img
	r.mu.Unlock()
	return id, nil
}

func (r *eglRenderer) ReleaseTexture(id uint64) {
	r.mu.Lock()
	img, ok := r.textures[id]
	if ok {
		delete(r.textures, id)
	}
	r.mu.Unlock()
	if ok {
		C.eglDestroyImageKHR(r.dpy, img)
	}
}

func (r *eglRenderer) SupportedFormats() []uint32 {
	// DRM_FORMAT_XRGB8888, DRM_FORMAT_ARGB8888 — the universally
	// supported baseline; a production renderer would query
	// EGL_EXT_image_dma_buf_import_modifiers here.
	return []uint32{0x34325258, 0x34325241}
}

func (r *eglRenderer) Close() error {
	r.mu.Lock()
	for id, img := range r.textures {
		C.eglDestroyImageKHR(r.dpy, img)
		delete(r.textures, id)
	}
	r.mu.Unlock()

	C.eglTerminate(r.dpy)
	if r.gbm != nil {
		C.gbm_device_destroy(r.gbm)
	}
	return nil
}
