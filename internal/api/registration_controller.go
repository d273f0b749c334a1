package api

import (
	"context"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/model"
	"github.com/mautops/membership-gin/internal/service"
	"github.com/mautops/membership-gin/internal/storage"
	"github.com/sirupsen/logrus"
)

// documentsStep 上传文件的步骤
const documentsStep = 7

// maxUploadBody 第 7 步请求体上限,8 个文件各 5MB 再加表单开销
const maxUploadBody = 8*storage.DefaultMaxSize + 1024*1024

// RegistrationController 注册流程控制器
type RegistrationController struct {
	registrationService service.RegistrationService
	files               storage.FileStore
	logger              logrus.FieldLogger
}

// NewRegistrationController 创建注册流程控制器
func NewRegistrationController(registrationService service.RegistrationService, files storage.FileStore, logger logrus.FieldLogger) *RegistrationController {
	return &RegistrationController{
		registrationService: registrationService,
		files:               files,
		logger:              logger,
	}
}

// SaveStep 保存第 2-8 步,第 7 步为 multipart 上传
// @Summary      保存注册步骤
// @Description  保存第 2-8 步;第 7 步使用 multipart 上传文件;第 8 步提交申请
// @Tags         注册流程
// @Accept       json,mpfd
// @Produce      json
// @Param        step path int true "步骤编号 2-8"
// @Param        request body object false "步骤内容,第 7 步除外"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /registration/steps/{step} [post]
// @Security     BearerAuth
func (c *RegistrationController) SaveStep(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		HandleError(ctx, apperror.NewAuthentication("authentication required"))
		return
	}

	step, err := strconv.Atoi(ctx.Param("step"))
	if err != nil {
		HandleError(ctx, apperror.NewFieldValidation("step", "step must be a number"))
		return
	}
	payload, err := service.NewStepPayload(step)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	if step != documentsStep {
		if err := bindJSON(ctx, payload, true); err != nil {
			HandleError(ctx, err)
			return
		}
		c.save(ctx, actor, step, payload, nil)
		return
	}

	// 文件引用只能来自本次上传,不接受客户端提交的引用
	docs := payload.(*service.DocumentsPayload)
	if !strings.HasPrefix(ctx.ContentType(), "multipart/") {
		c.save(ctx, actor, step, docs, nil)
		return
	}

	// 记录替换前的引用,保存成功后删除被替换的文件
	before, err := c.registrationService.GetProgress(ctx.Request.Context(), actor.ID)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	saved, err := c.storeUploads(ctx, docs)
	if err != nil {
		c.discard(ctx.Request.Context(), saved)
		HandleError(ctx, err)
		return
	}
	if progress, ok := c.save(ctx, actor, step, docs, saved); ok {
		c.discard(ctx.Request.Context(), replacedRefs(before.Applicant.Documents, progress.Applicant.Documents))
	}
}

// Progress 当前注册进度
// @Summary      注册进度
// @Description  返回完整申请记录和当前进度
// @Tags         注册流程
// @Accept       json
// @Produce      json
// @Success      200  {object}  Response
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /registration/progress [get]
// @Security     BearerAuth
func (c *RegistrationController) Progress(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		HandleError(ctx, apperror.NewAuthentication("authentication required"))
		return
	}

	progress, err := c.registrationService.GetProgress(ctx.Request.Context(), actor.ID)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, progress)
}

// save 保存步骤,失败时删除本次上传的文件
func (c *RegistrationController) save(ctx *gin.Context, actor service.Actor, step int, payload service.StepPayload, uploaded []string) (*service.Progress, bool) {
	progress, err := c.registrationService.SaveStep(ctx.Request.Context(), actor.ID, step, payload)
	if err != nil {
		c.discard(ctx.Request.Context(), uploaded)
		HandleError(ctx, err)
		return nil, false
	}

	Success(ctx, progress)
	return progress, true
}

// storeUploads 校验文件数量后逐个保存,返回已保存的引用
func (c *RegistrationController) storeUploads(ctx *gin.Context, docs *service.DocumentsPayload) ([]string, error) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxUploadBody)
	form, err := ctx.MultipartForm()
	if err != nil {
		return nil, apperror.NewUpload("documents", "invalid multipart form", strconv.FormatInt(maxUploadBody/(1024*1024), 10)+"MB total")
	}

	singles := []struct {
		field string
		dst   *string
	}{
		{storage.FieldProfilePhoto, &docs.ProfilePhoto},
		{storage.FieldNICCopy, &docs.NICCopy},
		{storage.FieldCVDocument, &docs.CVDocument},
	}

	// 1. 先检查数量,避免写入后再拒绝
	for _, s := range singles {
		if len(form.File[s.field]) > 1 {
			return nil, apperror.NewUpload(s.field, "too many files", "1")
		}
	}
	degrees := form.File[storage.FieldDegreeCertificates]
	if len(degrees) > storage.MaxDegreeCertificates {
		return nil, apperror.NewUpload(storage.FieldDegreeCertificates, "too many files", strconv.Itoa(storage.MaxDegreeCertificates))
	}

	// 2. 保存文件
	var saved []string
	for _, s := range singles {
		files := form.File[s.field]
		if len(files) == 0 {
			continue
		}
		ref, err := c.store(ctx.Request.Context(), s.field, files[0])
		if err != nil {
			return saved, err
		}
		saved = append(saved, ref)
		*s.dst = ref
	}
	if len(degrees) > 0 {
		docs.DegreeCertificates = make([]string, 0, len(degrees))
		for _, fh := range degrees {
			ref, err := c.store(ctx.Request.Context(), storage.FieldDegreeCertificates, fh)
			if err != nil {
				return saved, err
			}
			saved = append(saved, ref)
			docs.DegreeCertificates = append(docs.DegreeCertificates, ref)
		}
	}

	return saved, nil
}

func (c *RegistrationController) store(ctx context.Context, field string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", apperror.NewUpload(field, "cannot read file", "")
	}
	defer f.Close()

	return c.files.Save(ctx, field, storage.Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Reader:   f,
	})
}

// replacedRefs 返回 before 中不再被 after 引用的文件
func replacedRefs(before, after *model.Documents) []string {
	kept := make(map[string]bool)
	for _, ref := range after.Refs() {
		kept[ref] = true
	}
	var replaced []string
	for _, ref := range before.Refs() {
		if !kept[ref] {
			replaced = append(replaced, ref)
		}
	}
	return replaced
}

// discard 删除未被记录引用的上传文件
func (c *RegistrationController) discard(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if err := c.files.Delete(ctx, ref); err != nil {
			c.logger.WithError(err).WithField("ref", ref).Warn("Failed to delete orphaned upload")
		}
	}
}
