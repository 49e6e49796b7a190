package app

import (
	"slices"

	"github.com/specialistvlad/assetgraph/internal/registry"
	"github.com/specialistvlad/assetgraph/modules/bundlebuilder"
	"github.com/specialistvlad/assetgraph/modules/bundleconfig"
	"github.com/specialistvlad/assetgraph/modules/exporter"
	"github.com/specialistvlad/assetgraph/modules/filter"
	"github.com/specialistvlad/assetgraph/modules/grouping"
	"github.com/specialistvlad/assetgraph/modules/importsetting"
	"github.com/specialistvlad/assetgraph/modules/loader"
	"github.com/specialistvlad/assetgraph/modules/modifier"
	"github.com/specialistvlad/assetgraph/modules/postprocess"
	"github.com/specialistvlad/assetgraph/modules/prefabbuilder"
)

// coreModules is the definitive list of all node kinds that are compiled
// into the assetgraph binary.
var coreModules = []registry.Module{
	&loader.Module{},
	&filter.Module{},
	&importsetting.Module{},
	&modifier.Module{},
	&grouping.Module{},
	&prefabbuilder.Module{},
	&bundleconfig.Module{},
	&bundlebuilder.Module{},
	&exporter.Module{},
	&postprocess.Module{},
}

// CoreModules returns the node kinds compiled into the binary.
func CoreModules() []registry.Module {
	return slices.Clone(coreModules)
}
