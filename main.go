package main

import (
	"context"
	"flag"
	"strconv"
	"strings"
	"time"

	"github.com/ainilili/colstore/catalog"
	"github.com/ainilili/colstore/cluster"
	"github.com/ainilili/colstore/database"
	"github.com/ainilili/colstore/fdw"
	"github.com/ainilili/colstore/importer"
	"github.com/ainilili/colstore/loader"
	"github.com/ainilili/colstore/log"
	"github.com/ainilili/colstore/pprof"
)

var dataPath *string
var leaves *string
var dstUser *string
var dstPassword *string
var stagingDir *string
var enablePprof *bool
var pprofAddr *string

//  usage example:
//      ./colstore --data_path /tmp/data --leaves 127.0.0.1:3306,127.0.0.1:3307 --dst_user root --dst_password 123456789
//
//  with no --leaves the importer stages inserts in the local journal
//  instead of writing to a live cluster.
func init() {
	dataPath = flag.String("data_path", "/tmp/data", "dir path of source data")
	leaves = flag.String("leaves", "", "comma-separated ip:port list of leaf databases")
	dstUser = flag.String("dst_user", "root", "user name of leaf databases")
	dstPassword = flag.String("dst_password", "", "password of leaf databases")
	stagingDir = flag.String("staging_dir", "/tmp/colstore", "dir path of the staging journal")
	enablePprof = flag.Bool("pprof", false, "serve pprof")
	pprofAddr = flag.String("pprof_addr", pprof.DefaultAddr, "listen address of the pprof server")

	flag.Parse()
}

func main() {
	start := time.Now().UnixNano()
	if *enablePprof {
		go pprof.StartPprofServer(*pprofAddr)
	}
	_main()
	log.Infof("time-consuming %dms\n", (time.Now().UnixNano()-start)/1e6)
}

func _main() {
	sources, cat, err := importer.DiscoverTables(*dataPath)
	if err != nil {
		log.Panic(err)
	}
	log.Infof("discovered %d tables in %d databases\n", len(sources), len(cat.Databases))

	var conn loader.DistributedConnector
	if *leaves == "" {
		conn = cluster.NewSingleNode(*stagingDir, cat)
	} else {
		dbs := make([]*database.DB, 0)
		for _, addr := range strings.Split(*leaves, ",") {
			ip, portStr, ok := strings.Cut(addr, ":")
			if !ok {
				log.Panicf("leaf address %q is not ip:port", addr)
			}
			port, err := strconv.Atoi(portStr)
			if err != nil {
				log.Panicf("leaf address %q has a bad port: %v", addr, err)
			}
			db, err := database.New(ip, port, *dstUser, *dstPassword)
			if err != nil {
				log.Panic(err)
			}
			dbs = append(dbs, db)
		}
		conn = cluster.NewConnector(dbs, cat)
	}

	factory := fdw.NewFactory()
	factory.SetSystemCatalog(cat)
	factory.SetStagingDir(*stagingDir)

	im := importer.New(factory, conn)
	session := &catalog.SessionInfo{ID: "import", UserID: 1}
	if err := im.ImportAll(context.Background(), session, sources); err != nil {
		log.Panic(err)
	}
}
