package metadata

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Smeilz/dataset/pkg/conf"
)

func TestInfluxDBConfig(t *testing.T) {
	Convey("While using the metadata package", t, func() {
		influxConfig := DefaultInfluxDBConfig()
		Convey("InfluxDB default config shall mirror the flag defaults", func() {
			So(influxConfig.dbName, ShouldEqual, conf.InfluxDBName.Value())
			So(influxConfig.httpConfig.Addr, ShouldEqual, fmt.Sprintf("http://%s:%d", conf.InfluxDBAddress.Value(), conf.InfluxDBPort.Value()))
			So(influxConfig.httpConfig.Username, ShouldEqual, conf.InfluxDBUsername.Value())
			So(influxConfig.httpConfig.Password, ShouldEqual, conf.InfluxDBPassword.Value())
			So(influxConfig.createDatabase, ShouldBeTrue)
		})
	})
}
