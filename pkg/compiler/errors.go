package compiler

import "github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"

var (
	errMissingManifest = kcerrors.New(kcerrors.ErrCodeCompile, "compilation context requires a manifest")
	errMissingCjcPath  = kcerrors.New(kcerrors.ErrCodeCompile, "compilation context requires a cjc path")
)
